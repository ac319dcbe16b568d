package workflow

import (
	"context"
	"fmt"
)

// OriginalUploadLabel is the fixed prompt label for images kept as uploaded.
const OriginalUploadLabel = "Original upload (unedited)"

// Finalize resolves every paragraph to a concrete image, strictly in index
// order, one service call at a time. The ordering is a contract, not an
// optimization: it keeps progress reporting deterministic and guarantees
// that an aborted pass leaves exactly a prefix of entries finalized.
//
// The gate is checked up front with no service contact: every uploaded
// entry must be keep-original or editing with a non-empty directive.
// publish, when non-nil, is called after each completed entry. On a
// per-item failure the pass aborts; already finalized entries stay
// finalized and the remaining entries are untouched. A re-run skips
// entries that are already finalized.
func (e *Engine) Finalize(ctx context.Context, publish func(Progress)) error {
	if !e.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer e.inflight.Release(1)

	e.mu.Lock()
	if e.stage != StageImageCustomization {
		e.mu.Unlock()
		return validationf("finalize is only valid during image customization")
	}
	if !e.canFinalizeLocked() {
		e.mu.Unlock()
		return validationf("every uploaded image needs keep-original or an edit directive before finalizing")
	}
	epoch := e.epoch
	total := len(e.paragraphs)
	e.mu.Unlock()

	for i := 0; i < total; i++ {
		e.mu.Lock()
		if e.epoch != epoch {
			e.mu.Unlock()
			return nil
		}
		p := *e.paragraphs[i]
		e.mu.Unlock()

		if p.EditStage == EditFinalized {
			e.publishItem(publish, epoch, i, total)
			continue
		}

		var (
			prompt    string
			img       []byte
			finalMIME string
			src       SourceMode
		)
		switch {
		case p.Source != SourceUserUpload:
			derived, err := e.gen.DerivePrompt(ctx, p.Text)
			if err != nil {
				return fmt.Errorf("finalize paragraph %d: %w", i+1, err)
			}
			img, err = e.gen.GenerateImage(ctx, derived)
			if err != nil {
				return fmt.Errorf("finalize paragraph %d: %w", i+1, err)
			}
			prompt = derived
			finalMIME = "image/png"
			src = SourceAIGenerate

		case p.EditStage == EditEditing:
			edited, err := e.gen.EditImage(ctx, p.UploadedBytes, p.UploadedMIME, p.Directive)
			if err != nil {
				return fmt.Errorf("finalize paragraph %d: %w", i+1, err)
			}
			img = edited
			prompt = fmt.Sprintf("Edited upload: %s", p.Directive)
			finalMIME = "image/png"
			src = SourceUserUpload

		case p.EditStage == EditKeepOriginal:
			img = p.UploadedBytes
			prompt = OriginalUploadLabel
			finalMIME = p.UploadedMIME
			src = SourceUserUpload

		default:
			// The gate makes this unreachable; if state handling ever
			// drifts, fail loudly instead of skipping the entry.
			e.commit(epoch, func() { e.paragraphs[i].EditStage = EditFailed })
			return fmt.Errorf("finalize paragraph %d: unresolved edit state %s", i+1, p.EditStage)
		}

		ok := e.commit(epoch, func() {
			live := e.paragraphs[i]
			live.Prompt = prompt
			live.FinalBytes = img
			live.FinalMIME = finalMIME
			live.FinalImage = dataURI(finalMIME, img)
			live.Source = src
			live.EditStage = EditFinalized
		})
		if !ok {
			return nil
		}
		e.publishItem(publish, epoch, i, total)
	}

	e.commit(epoch, func() { e.stage = StageResults })
	return nil
}

// publishItem re-checks the epoch before touching the collection: a reset
// may land between the caller's unlock and this lock, emptying paragraphs.
func (e *Engine) publishItem(publish func(Progress), epoch, i, total int) {
	if publish == nil {
		return
	}
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	p := *e.paragraphs[i]
	e.mu.Unlock()
	publish(Progress{Index: i, Total: total, Paragraph: p})
}

// Image returns the final image bytes and MIME type for paragraph i.
func (e *Engine) Image(i int) ([]byte, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.paragraphLocked(i)
	if err != nil {
		return nil, "", err
	}
	if p.EditStage != EditFinalized {
		return nil, "", validationf("paragraph %d has no final image yet", i)
	}
	return p.FinalBytes, p.FinalMIME, nil
}
