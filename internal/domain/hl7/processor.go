package hl7

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/matt-standley/openmrs-core/internal/domain/clinical"
	"github.com/matt-standley/openmrs-core/internal/domain/encounter"
	"github.com/matt-standley/openmrs-core/internal/domain/registry"
	"github.com/matt-standley/openmrs-core/internal/platform/hl7v2"
	"github.com/matt-standley/openmrs-core/internal/platform/telemetry"
)

const (
	// SupportedVersion is the only message version the pipeline accepts.
	SupportedVersion = "2.5"

	// MessageTypeORU is the only message type the pipeline accepts: the
	// unsolicited observation result.
	MessageTypeORU = "ORU"

	// ProposedConceptIdentifier marks a coded value whose concept does not
	// exist yet: the value becomes a concept proposal, not an observation.
	ProposedConceptIdentifier = "PROPOSED"
)

// Processing stages, recorded on fatal error records so the failure point is
// visible without re-reading the message.
const (
	StageReceived              = "RECEIVED"
	StageParsed                = "PARSED"
	StageHeaderExtracted       = "HEADER_EXTRACTED"
	StageContextResolved       = "CONTEXT_RESOLVED"
	StageEncounterCreated      = "ENCOUNTER_CREATED"
	StageObservationsProcessed = "OBSERVATIONS_PROCESSED"
	StageArchived              = "ARCHIVED"
	StageErrored               = "ERRORED"
)

// EncounterCreator is the slice of the encounter service the processor needs.
type EncounterCreator interface {
	CreateEncounter(ctx context.Context, enc *encounter.Encounter) error
}

// ObsRecorder is the slice of the clinical service the processor needs.
type ObsRecorder interface {
	CreateObs(ctx context.Context, obs *clinical.Obs) error
	ProposeConcept(ctx context.Context, cp *clinical.ConceptProposal) error
}

// Processor drains the inbound queue: each entry is parsed, resolved against
// the directory, materialized into an encounter plus observations, and then
// archived or moved to the error store. Every entry reaches exactly one of
// those two terminal states.
type Processor struct {
	repo       Repository
	directory  registry.Repository
	encounters EncounterCreator
	clinical   ObsRecorder
	logger     zerolog.Logger
	metrics    *telemetry.PipelineMetrics

	// drainMu serializes whole drains. NextEntry carries no row claim, so
	// overlapping drains (interval ticker, process-now endpoint, CLI) would
	// pull the same entry twice.
	drainMu sync.Mutex
}

func NewProcessor(
	repo Repository,
	directory registry.Repository,
	encounters EncounterCreator,
	clinicalSvc ObsRecorder,
	logger zerolog.Logger,
	metrics *telemetry.PipelineMetrics,
) *Processor {
	return &Processor{
		repo:       repo,
		directory:  directory,
		encounters: encounters,
		clinical:   clinicalSvc,
		logger:     logger,
		metrics:    metrics,
	}
}

// resolvedContext holds the directory records a message references. Resolved
// once per message, reused for every observation in it.
type resolvedContext struct {
	enterer  *registry.User
	patient  *registry.Patient
	provider *registry.User
	location *registry.Location
	form     *registry.Form
}

// obsError is one per-observation failure. The display strings persisted to
// the error store are only assembled at the persistence boundary.
type obsError struct {
	fragment string
	message  string
	details  string
}

// ProcessQueue pulls and processes entries until the queue reports empty.
// It returns the number of entries processed. A returned error means the
// queue or a terminal store itself failed, not that a message was bad; bad
// messages land in the error store and do not stop the loop. Concurrent
// callers serialize: a second drain waits for the first and then usually
// finds the queue empty.
func (p *Processor) ProcessQueue(ctx context.Context) (int, error) {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	processed := 0
	for {
		entry, err := p.repo.NextEntry(ctx)
		if err != nil {
			return processed, fmt.Errorf("pull next queue entry: %w", err)
		}
		if entry == nil {
			return processed, nil
		}
		if err := p.ProcessEntry(ctx, entry); err != nil {
			return processed, err
		}
		processed++
	}
}

// ProcessEntry runs one queue entry to a terminal state. Exposed separately
// for manual replay and tests.
func (p *Processor) ProcessEntry(ctx context.Context, entry *InQueue) error {
	start := time.Now()
	log := p.logger.With().
		Stringer("entry_id", entry.ID).
		Str("source", entry.Source).
		Str("source_key", entry.SourceKey).
		Logger()
	log.Debug().Str("stage", StageReceived).Msg("processing queue entry")

	if p.metrics != nil {
		defer func() {
			p.metrics.Processed.Inc()
			p.metrics.QueueDuration.Observe(time.Since(start).Seconds())
		}()
	}

	msg, err := hl7v2.Parse([]byte(entry.Data))
	if err != nil {
		return p.fail(ctx, log, entry, StageParsed, "message could not be parsed", err)
	}
	if msg.Version != SupportedVersion {
		return p.fail(ctx, log, entry, StageParsed,
			fmt.Sprintf("unsupported message version %q", msg.Version), nil)
	}
	if msg.Type != MessageTypeORU {
		return p.fail(ctx, log, entry, StageParsed,
			fmt.Sprintf("unsupported message type %q", msg.Type), nil)
	}

	// Required header segments, consumed in fixed order. Each is one forward
	// cursor advance; the cursor never rewinds.
	evn := msg.NextSegment("EVN")
	if evn == nil {
		return p.fail(ctx, log, entry, StageHeaderExtracted, "missing EVN segment", nil)
	}
	pid := msg.NextSegment("PID")
	if pid == nil {
		return p.fail(ctx, log, entry, StageHeaderExtracted, "missing PID segment", nil)
	}
	pv1 := msg.NextSegment("PV1")
	if pv1 == nil {
		return p.fail(ctx, log, entry, StageHeaderExtracted, "missing PV1 segment", nil)
	}

	rc, err := p.resolveContext(ctx, msg, evn, pid, pv1)
	if err != nil {
		return p.fail(ctx, log, entry, StageContextResolved, "reference resolution failed", err)
	}

	enc, err := p.createEncounter(ctx, rc, evn, pv1)
	if err != nil {
		return p.fail(ctx, log, entry, StageEncounterCreated, "encounter creation failed", err)
	}

	// Observation loop: one OBR group at a time, OBX details inside it.
	// Failures are accumulated per observation and never abort the message.
	var obsErrs []obsError
	for obr := msg.NextSegment("OBR"); obr != nil; obr = msg.NextSegment("OBR") {
		for msg.HasNext("OBX") {
			obx := msg.Next()
			if oe := p.createObservation(ctx, rc, enc, obx); oe != nil {
				obsErrs = append(obsErrs, *oe)
				if p.metrics != nil {
					p.metrics.ObsErrors.Inc()
				}
				log.Warn().Str("reason", oe.message).Str("details", oe.details).Msg("observation skipped")
			}
		}
	}

	if len(obsErrs) > 0 {
		if err := p.recordObsErrors(ctx, entry, obsErrs); err != nil {
			return fmt.Errorf("record observation errors: %w", err)
		}
	}

	if err := p.repo.CreateArchive(ctx, &InArchive{
		Source:    entry.Source,
		SourceKey: entry.SourceKey,
		Data:      entry.Data,
	}); err != nil {
		return fmt.Errorf("archive entry %s: %w", entry.ID, err)
	}
	if err := p.repo.DeleteEntry(ctx, entry.ID); err != nil {
		return fmt.Errorf("remove archived entry %s: %w", entry.ID, err)
	}

	if p.metrics != nil {
		p.metrics.Archived.Inc()
	}
	log.Info().
		Str("stage", StageArchived).
		Int("encounter_id", enc.ID).
		Int("obs_errors", len(obsErrs)).
		Msg("queue entry archived")
	return nil
}

// fail moves the entry to the error store and removes it from the queue. The
// returned error is non-nil only when that terminal bookkeeping itself fails.
func (p *Processor) fail(ctx context.Context, log zerolog.Logger, entry *InQueue, stage, summary string, cause error) error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}

	rec := &InError{
		Source:       entry.Source,
		SourceKey:    entry.SourceKey,
		Data:         entry.Data,
		Error:        fmt.Sprintf("%s: %s", stage, summary),
		ErrorDetails: details,
	}
	if err := p.repo.CreateError(ctx, rec); err != nil {
		return fmt.Errorf("store fatal error for entry %s: %w", entry.ID, err)
	}
	if err := p.repo.DeleteEntry(ctx, entry.ID); err != nil {
		return fmt.Errorf("remove errored entry %s: %w", entry.ID, err)
	}

	if p.metrics != nil {
		p.metrics.Errored.Inc()
	}
	log.Error().
		Str("stage", stage).
		Str("reason", summary).
		Str("details", details).
		Msg("queue entry errored")
	return nil
}

// resolveContext resolves every directory reference the message carries.
// Positions follow the wire layout: enterer EVN-5.1, patient PID-3.1,
// provider PV1-7.1, location PV1-3.1, form MSH-21.1. Any failure is fatal
// for the whole message.
func (p *Processor) resolveContext(ctx context.Context, msg *hl7v2.Message, evn, pid, pv1 *hl7v2.Segment) (*resolvedContext, error) {
	rc := &resolvedContext{}

	id, err := parseRefID(evn.Component(5, 1))
	if err != nil {
		return nil, fmt.Errorf("enterer from EVN-5: %w", err)
	}
	if rc.enterer, err = p.directory.GetUser(ctx, id); err != nil {
		return nil, fmt.Errorf("look up enterer %d: %w", id, err)
	}
	if rc.enterer == nil {
		return nil, fmt.Errorf("no user with id %d for enterer", id)
	}

	if id, err = parseRefID(pid.Component(3, 1)); err != nil {
		return nil, fmt.Errorf("patient from PID-3: %w", err)
	}
	if rc.patient, err = p.directory.GetPatient(ctx, id); err != nil {
		return nil, fmt.Errorf("look up patient %d: %w", id, err)
	}
	if rc.patient == nil {
		return nil, fmt.Errorf("no patient with id %d", id)
	}

	if id, err = parseRefID(pv1.Component(7, 1)); err != nil {
		return nil, fmt.Errorf("provider from PV1-7: %w", err)
	}
	if rc.provider, err = p.directory.GetUser(ctx, id); err != nil {
		return nil, fmt.Errorf("look up provider %d: %w", id, err)
	}
	if rc.provider == nil {
		return nil, fmt.Errorf("no user with id %d for provider", id)
	}

	if id, err = parseRefID(pv1.Component(3, 1)); err != nil {
		return nil, fmt.Errorf("location from PV1-3: %w", err)
	}
	if rc.location, err = p.directory.GetLocation(ctx, id); err != nil {
		return nil, fmt.Errorf("look up location %d: %w", id, err)
	}
	if rc.location == nil {
		return nil, fmt.Errorf("no location with id %d", id)
	}

	formRef := strings.SplitN(msg.ProfileID, msg.ComponentSep, 2)[0]
	if id, err = parseRefID(formRef); err != nil {
		return nil, fmt.Errorf("form from MSH-21: %w", err)
	}
	if rc.form, err = p.directory.GetForm(ctx, id); err != nil {
		return nil, fmt.Errorf("look up form %d: %w", id, err)
	}
	if rc.form == nil {
		return nil, fmt.Errorf("no form with id %d", id)
	}

	return rc, nil
}

// createEncounter builds the encounter from the visit and event segments and
// persists it. The encounter type comes from the form.
func (p *Processor) createEncounter(ctx context.Context, rc *resolvedContext, evn, pv1 *hl7v2.Segment) (*encounter.Encounter, error) {
	encDatetime, err := hl7v2.ParseDate(pv1.Field(44))
	if err != nil {
		return nil, fmt.Errorf("encounter datetime from PV1-44: %w", err)
	}
	dateCreated, err := hl7v2.ParseTimestamp(evn.Field(2))
	if err != nil {
		return nil, fmt.Errorf("event timestamp from EVN-2: %w", err)
	}

	enc := &encounter.Encounter{
		EncounterDatetime: encDatetime,
		EncounterTypeID:   rc.form.EncounterTypeID,
		FormID:            rc.form.ID,
		LocationID:        rc.location.ID,
		PatientID:         rc.patient.ID,
		ProviderID:        rc.provider.ID,
		CreatorID:         rc.enterer.ID,
		DateCreated:       dateCreated,
	}
	if err := p.encounters.CreateEncounter(ctx, enc); err != nil {
		return nil, err
	}
	return enc, nil
}

// createObservation handles one OBX segment. A nil return means the segment
// was fully handled: an observation stored, a concept proposal raised, or a
// wire datatype we deliberately do not decode. A non-nil return is a
// per-observation failure that the caller accumulates.
func (p *Processor) createObservation(ctx context.Context, rc *resolvedContext, enc *encounter.Encounter, obx *hl7v2.Segment) *obsError {
	fail := func(message string, cause error) *obsError {
		details := ""
		if cause != nil {
			details = cause.Error()
		}
		return &obsError{fragment: obx.String(), message: message, details: details}
	}

	conceptID, err := parseRefID(obx.Component(3, 1))
	if err != nil {
		return fail("observation concept identifier from OBX-3", err)
	}
	concept, err := p.directory.GetConcept(ctx, conceptID)
	if err != nil {
		return fail(fmt.Sprintf("look up concept %d", conceptID), err)
	}
	if concept == nil {
		return fail(fmt.Sprintf("no concept with id %d", conceptID), nil)
	}

	obsDatetime := enc.EncounterDatetime
	if ts := obx.Field(14); ts != "" {
		if obsDatetime, err = hl7v2.ParseTimestamp(ts); err != nil {
			return fail("observation timestamp from OBX-14", err)
		}
	}

	decode, ok := valueDecoders[obx.Field(2)]
	if !ok {
		// Unknown wire datatypes produce neither a value nor an error.
		return nil
	}

	value, proposal, err := decode(ctx, p, obx)
	if err != nil {
		return fail(fmt.Sprintf("decode %s value", obx.Field(2)), err)
	}

	if proposal != nil {
		proposal.EncounterID = enc.ID
		proposal.ObsConceptID = concept.ID
		proposal.CreatorID = rc.enterer.ID
		if err := p.clinical.ProposeConcept(ctx, proposal); err != nil {
			return fail("create concept proposal", err)
		}
		if p.metrics != nil {
			p.metrics.Proposals.Inc()
		}
		return nil
	}

	obs := &clinical.Obs{
		EncounterID: enc.ID,
		PatientID:   rc.patient.ID,
		ConceptID:   concept.ID,
		ObsDatetime: obsDatetime,
		LocationID:  rc.location.ID,
		CreatorID:   rc.enterer.ID,
		Value:       value,
	}
	if err := p.clinical.CreateObs(ctx, obs); err != nil {
		return fail("create observation", err)
	}
	return nil
}

// recordObsErrors persists the accumulated per-observation failures as one
// aggregated error record. Fragments keep their segment separator; summaries
// and details are newline-joined.
func (p *Processor) recordObsErrors(ctx context.Context, entry *InQueue, errs []obsError) error {
	fragments := make([]string, len(errs))
	messages := make([]string, len(errs))
	details := make([]string, len(errs))
	for i, oe := range errs {
		fragments[i] = oe.fragment
		messages[i] = oe.message
		details[i] = oe.details
	}

	return p.repo.CreateError(ctx, &InError{
		Source:       entry.Source,
		SourceKey:    entry.SourceKey,
		Data:         strings.Join(fragments, "\r"),
		Error:        strings.Join(messages, "\n"),
		ErrorDetails: strings.Join(details, "\n"),
	})
}

// parseRefID parses a directory identifier from the wire: required, integer,
// positive.
func parseRefID(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("identifier is empty")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("identifier %q is not an integer", raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("identifier must be positive, got %d", id)
	}
	return id, nil
}

// valueDecoder turns an OBX value into a typed observation value, or into a
// concept proposal for the coded proposal sentinel.
type valueDecoder func(ctx context.Context, p *Processor, obx *hl7v2.Segment) (clinical.Value, *clinical.ConceptProposal, error)

var valueDecoders = map[string]valueDecoder{
	"NM":  decodeNumeric,
	"CWE": decodeCoded,
	"CE":  decodeCoded,
	"DT":  decodeDate,
	"TS":  decodeTimestamp,
	"TM":  decodeTime,
	"ST":  decodeText,
}

func decodeNumeric(_ context.Context, _ *Processor, obx *hl7v2.Segment) (clinical.Value, *clinical.ConceptProposal, error) {
	raw := strings.TrimSpace(obx.Field(5))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return clinical.Value{}, nil, fmt.Errorf("numeric value %q: %w", raw, err)
	}
	return clinical.NumericValue(f), nil, nil
}

func decodeCoded(ctx context.Context, p *Processor, obx *hl7v2.Segment) (clinical.Value, *clinical.ConceptProposal, error) {
	first := obx.Component(5, 1)
	if first == ProposedConceptIdentifier {
		return clinical.Value{}, &clinical.ConceptProposal{OriginalText: obx.Component(5, 2)}, nil
	}

	id, err := parseRefID(first)
	if err != nil {
		return clinical.Value{}, nil, fmt.Errorf("coded value: %w", err)
	}
	concept, err := p.directory.GetConcept(ctx, id)
	if err != nil {
		return clinical.Value{}, nil, fmt.Errorf("look up coded value concept %d: %w", id, err)
	}
	if concept == nil {
		return clinical.Value{}, nil, fmt.Errorf("no concept with id %d for coded value", id)
	}
	return clinical.CodedValue(concept.ID), nil, nil
}

func decodeDate(_ context.Context, _ *Processor, obx *hl7v2.Segment) (clinical.Value, *clinical.ConceptProposal, error) {
	t, err := hl7v2.ParseDate(obx.Field(5))
	if err != nil {
		return clinical.Value{}, nil, err
	}
	return clinical.DatetimeValue(t), nil, nil
}

func decodeTimestamp(_ context.Context, _ *Processor, obx *hl7v2.Segment) (clinical.Value, *clinical.ConceptProposal, error) {
	t, err := hl7v2.ParseTimestamp(obx.Field(5))
	if err != nil {
		return clinical.Value{}, nil, err
	}
	return clinical.DatetimeValue(t), nil, nil
}

func decodeTime(_ context.Context, _ *Processor, obx *hl7v2.Segment) (clinical.Value, *clinical.ConceptProposal, error) {
	t, err := hl7v2.ParseTime(obx.Field(5))
	if err != nil {
		return clinical.Value{}, nil, err
	}
	return clinical.DatetimeValue(t), nil, nil
}

func decodeText(_ context.Context, _ *Processor, obx *hl7v2.Segment) (clinical.Value, *clinical.ConceptProposal, error) {
	return clinical.TextValue(obx.Field(5)), nil, nil
}
