package scanner

import (
	"errors"

	"github.com/bft-labs/barscan/pkg/capture"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/i18n"
	"github.com/bft-labs/barscan/pkg/lifecycle"
)

// View is the user-visible state of an instance, localized.
type View struct {
	// Status is the current status line, empty when there is nothing to say.
	Status string
	// Error is a human-readable message for the last failure.
	Error string
	// Busy is set while the engine loads, the camera opens or an image decodes.
	Busy bool

	// CanRestart offers "Start Again": after a single-shot scan completes or
	// after a recoverable failure.
	CanRestart   bool
	RestartLabel string

	// CanReload offers a full engine reload after a refused license change.
	CanReload   bool
	ReloadLabel string

	// UploadLabel and UploadHint are set when image decoding is enabled.
	UploadLabel string
	UploadHint  string
}

// View returns the current user-visible state.
func (s *Scanner) View() View {
	st := s.coord.Snapshot()

	s.mu.Lock()
	started := s.started
	sess := s.session
	decoding := s.decoding
	lastErr := s.lastErr
	s.mu.Unlock()

	v := View{
		RestartLabel: s.tr.Text(i18n.KeyStartAgain),
		ReloadLabel:  s.tr.Text(i18n.KeyReloadAction),
	}
	if s.cfg.DecodeMode.Images() {
		v.UploadLabel = s.tr.Text(i18n.KeyUploadImage)
		v.UploadHint = s.tr.Text(i18n.KeyUploadInstruction)
	}

	switch {
	case st.ReloadRequired:
		v.Error = s.tr.Text(i18n.KeyReloadRequired)
		v.CanReload = true
		return v
	case st.Phase == lifecycle.PhaseLoading:
		v.Status = s.tr.Text(i18n.KeyLoadingSDK)
		v.Busy = true
		return v
	case st.Phase == lifecycle.PhaseFailed:
		v.Error = s.errorText(st.Err)
		v.CanRestart = started
		return v
	}

	if decoding {
		v.Status = s.tr.Text(i18n.KeyProcessingImage)
		v.Busy = true
		return v
	}
	if lastErr != nil {
		v.Error = s.errorText(lastErr)
		v.CanRestart = started && s.cfg.DecodeMode.Camera() && !s.cfg.PreloadOnly
	}

	if sess != nil {
		switch sess.Status() {
		case capture.StatusInitializing:
			v.Status = s.tr.Text(i18n.KeyPreparingCamera)
			v.Busy = true
		case capture.StatusOpen:
			if sess.Mode() == capture.Continuous {
				v.Status = s.tr.Text(i18n.KeyScanningContinuously)
			} else {
				v.Status = s.tr.Text(i18n.KeyPointCamera)
			}
		case capture.StatusCompleted:
			v.Status = s.tr.Text(i18n.KeyScanCompleted)
			v.CanRestart = true
		case capture.StatusIdle:
			if err := sess.Err(); err != nil {
				v.Error = s.errorText(err)
				v.CanRestart = true
			}
		}
		return v
	}

	if st.Phase == lifecycle.PhaseReady && started && v.Status == "" && v.Error == "" {
		if s.cfg.DecodeMode.Camera() && !s.cfg.PreloadOnly {
			v.Status = s.tr.Text(i18n.KeyCameraReady)
		}
	}
	return v
}

// errorText turns an error into a localized message when one exists.
func (s *Scanner) errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrNotReady):
		return s.tr.Text(i18n.KeySDKNotLoaded)
	case errors.Is(err, engine.ErrNoBarcodeFound):
		return s.tr.Text(i18n.KeyNoBarcodeFound)
	case errors.Is(err, engine.ErrInvalidInput):
		return s.tr.Text(i18n.KeySelectImageFile)
	case errors.Is(err, engine.ErrLicenseChangeRequiresReload):
		return s.tr.Text(i18n.KeyReloadRequired)
	default:
		return err.Error()
	}
}
