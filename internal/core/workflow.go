package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"autoinspect/internal/blob"
	"autoinspect/internal/report"
	"autoinspect/pkg/domain"
)

// ReportRenderer produces the report document for an inspection.
type ReportRenderer interface {
	Render(ctx context.Context, insp Inspection, mode report.Mode) (report.Document, error)
}

func defaultRenderer() ReportRenderer { return report.New() }

// WorkflowStep names the phase of the save-and-generate workflow a failure
// occurred in, so callers can message each mode distinctly.
type WorkflowStep string

const (
	// StepSave is the initial persist with PDFGenerated=false. A failure here
	// aborts the workflow; nothing was generated.
	StepSave WorkflowStep = "save"
	// StepRender is report rendering and artifact writing. A failure here
	// leaves the record persisted with PDFGenerated=false; the data is safe.
	StepRender WorkflowStep = "render"
	// StepFlag is the final persist with PDFGenerated=true. A failure here is
	// a stale-flag warning: the report was already produced.
	StepFlag WorkflowStep = "flag"
)

// WorkflowError reports which workflow step failed and why.
type WorkflowError struct {
	Step WorkflowStep
	Err  error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("report workflow %s step: %v", e.Step, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// ReportOutcome describes a completed (or flag-stale) workflow run.
type ReportOutcome struct {
	ID       string
	Filename string
	Artifact blob.Info
	Stats    report.Stats
}

// GenerateReport runs the save-and-generate workflow: assign the inspection
// id if unset, persist with PDFGenerated=false, render and write the
// artifact, then re-persist with PDFGenerated=true.
//
// On a StepFlag failure the returned outcome is still valid: the artifact
// exists, only the stored flag is stale.
func (s *Service) GenerateReport(ctx context.Context, insp Inspection) (ReportOutcome, error) {
	var outcome ReportOutcome
	err := s.instrument(ctx, "generate_report", func(ctx context.Context) error {
		work := domain.CloneInspection(insp)
		if work.ID == "" {
			work.ID = s.newInspectionID(work)
		}
		outcome.ID = work.ID

		rec := SavedInspection{Inspection: work, PDFGenerated: false}
		if _, err := s.SaveInspection(ctx, rec); err != nil {
			return &WorkflowError{Step: StepSave, Err: err}
		}

		doc, err := s.renderer.Render(ctx, work, report.ModeFull)
		if err != nil {
			return &WorkflowError{Step: StepRender, Err: err}
		}
		outcome.Filename = report.Filename(work)
		outcome.Stats = doc.Stats

		info, err := s.artifacts.Put(ctx, outcome.Filename, bytes.NewReader(doc.Bytes), blob.PutOptions{
			ContentType: "application/pdf",
			Metadata:    map[string]string{"inspection_id": work.ID},
		})
		if err != nil {
			return &WorkflowError{Step: StepRender, Err: err}
		}
		outcome.Artifact = info

		rec.PDFGenerated = true
		if _, err := s.SaveInspection(ctx, rec); err != nil {
			s.logger.Warn("report produced but generated flag not recorded", "id", work.ID, "error", err)
			return &WorkflowError{Step: StepFlag, Err: err}
		}
		return nil
	})
	return outcome, err
}

// newInspectionID mints an id unique per save and stable thereafter: a
// readable prefix from the agent and primary vehicle plus a random suffix.
func (s *Service) newInspectionID(insp Inspection) string {
	vehicle := insp.PrimaryVehicle()
	prefix := idToken(insp.AgentName) + "_" + idToken(vehicle.Model+vehicle.Year)
	return prefix + "_" + uuid.NewString()
}

func idToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	if b.Len() == 0 {
		return "inspection"
	}
	return b.String()
}

// previewRegistry keeps in-memory preview artifacts keyed by revocable URLs.
type previewRegistry struct {
	mu    sync.Mutex
	store blob.Store
}

func newPreviewRegistry() *previewRegistry {
	return &previewRegistry{store: blob.NewMemory()}
}

const previewScheme = "blob:memory/"

func (p *previewRegistry) mint(ctx context.Context, data []byte) (string, error) {
	key := uuid.NewString() + ".pdf"
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: "application/pdf"}); err != nil {
		return "", err
	}
	return previewScheme + key, nil
}

func (p *previewRegistry) open(ctx context.Context, url string) ([]byte, bool) {
	key, ok := strings.CutPrefix(url, previewScheme)
	if !ok {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, rc, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (p *previewRegistry) revoke(ctx context.Context, url string) bool {
	key, ok := strings.CutPrefix(url, previewScheme)
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	existed, err := p.store.Delete(ctx, key)
	return err == nil && existed
}

// GenerateReportPreview renders the full document into memory and returns a
// revocable preview URL. No file is downloaded and nothing is persisted.
func (s *Service) GenerateReportPreview(ctx context.Context, insp Inspection) (string, error) {
	return s.preview(ctx, insp, report.ModeFull, "generate_report_preview")
}

// GenerateReportPreviewTextOnly renders the fast text-only variant: same
// header and field blocks, image embedding skipped.
func (s *Service) GenerateReportPreviewTextOnly(ctx context.Context, insp Inspection) (string, error) {
	return s.preview(ctx, insp, report.ModeTextOnly, "generate_report_preview_text_only")
}

func (s *Service) preview(ctx context.Context, insp Inspection, mode report.Mode, op string) (string, error) {
	var url string
	err := s.instrument(ctx, op, func(ctx context.Context) error {
		doc, err := s.renderer.Render(ctx, domain.CloneInspection(insp), mode)
		if err != nil {
			return err
		}
		url, err = s.previews.mint(ctx, doc.Bytes)
		return err
	})
	return url, err
}

// OpenPreview returns the bytes behind a preview URL, false when revoked or
// unknown.
func (s *Service) OpenPreview(ctx context.Context, url string) ([]byte, bool) {
	return s.previews.open(ctx, url)
}

// RevokePreview releases the in-memory artifact behind a preview URL.
func (s *Service) RevokePreview(ctx context.Context, url string) bool {
	return s.previews.revoke(ctx, url)
}
