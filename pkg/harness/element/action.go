package element

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"

	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/verify"
)

// Click waits for the index-th element matching t to be interactable and
// clicks it.
func Click(ctx context.Context, p Page, t selector.Target, index int) error {
	log.Debug().Str("target", t.String()).Int("index", index).Msg("click")
	el, err := Nth(ctx, p, t, index)
	if err != nil {
		return err
	}
	if err := el.WaitInteractable(ctx); err != nil {
		return fmt.Errorf("%s is not interactable: %w", t, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to click %s: %w", t, err)
	}
	return nil
}

// SelectOption picks option in the dropdown t. Native <select> elements are
// driven directly; custom dropdowns are opened with a click and the option
// item with matching text is clicked.
func SelectOption(ctx context.Context, p Page, t selector.Target, option string) error {
	log.Debug().Str("target", t.String()).Str("option", option).Msg("select option")
	el, err := Nth(ctx, p, t, 0)
	if err != nil {
		return err
	}
	if err := el.WaitInteractable(ctx); err != nil {
		return fmt.Errorf("%s is not interactable: %w", t, err)
	}

	tag, err := el.Property(ctx, "tagName")
	if err != nil {
		return fmt.Errorf("failed to read tag of %s: %w", t, err)
	}
	if name, _ := tag.(string); strings.EqualFold(name, "select") {
		if err := el.Select(ctx, option); err != nil {
			return fmt.Errorf("failed to select %q in %s: %w", option, t, err)
		}
		return nil
	}

	ot, ok := t.OptionsTarget()
	if !ok {
		return fmt.Errorf("%s is not a native select and declares no options", t)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to open %s: %w", t, err)
	}
	ot.Text = option
	items, err := Find(ctx, p, ot)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		offered, _ := ReadOptions(ctx, p, t)
		return &verify.AssertionError{
			Message:  fmt.Sprintf("option not offered by %s", t),
			Op:       "item",
			Actual:   offered,
			Expected: option,
		}
	}
	if err := items[0].WaitInteractable(ctx); err != nil {
		return fmt.Errorf("option %q of %s is not interactable: %w", option, t, err)
	}
	return items[0].Click(ctx)
}

// UploadFiles sets the files of the file input t. Relative paths are
// resolved against the working directory.
func UploadFiles(ctx context.Context, p Page, t selector.Target, paths ...string) error {
	log.Debug().Str("target", t.String()).Strs("files", paths).Msg("upload files")
	el, err := Nth(ctx, p, t, 0)
	if err != nil {
		return err
	}
	if disabled, err := el.Property(ctx, "disabled"); err != nil {
		return fmt.Errorf("failed to read state of %s: %w", t, err)
	} else if disabled == true {
		return fmt.Errorf("%s is disabled", t)
	}
	abs := make([]string, len(paths))
	for i, path := range paths {
		if abs[i], err = filepath.Abs(path); err != nil {
			return err
		}
	}
	if err := el.SetFiles(ctx, abs); err != nil {
		return fmt.Errorf("failed to set files of %s: %w", t, err)
	}
	return nil
}
