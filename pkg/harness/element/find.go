package element

import (
	"context"
	"fmt"
	"strings"

	"github.com/thesyncim/confcheck/pkg/harness/selector"
	"github.com/thesyncim/confcheck/pkg/harness/verify"
)

// Find returns the elements matching t. When t.Text is set only elements
// whose trimmed text equals it are kept.
func Find(ctx context.Context, p Page, t selector.Target) ([]Element, error) {
	if p == nil {
		return nil, ErrNoPage
	}
	els, err := p.Elements(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t, err)
	}
	if t.Text == "" {
		return els, nil
	}

	kept := els[:0]
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of %s: %w", t, err)
		}
		if strings.TrimSpace(text) == t.Text {
			kept = append(kept, el)
		}
	}
	return kept, nil
}

// Nth returns the index-th element matching t.
func Nth(ctx context.Context, p Page, t selector.Target, index int) (Element, error) {
	els, err := Find(ctx, p, t)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(els) {
		return nil, &verify.AssertionError{
			Message:  fmt.Sprintf("element %s not found", t),
			Op:       "element at index",
			Actual:   fmt.Sprintf("%d matching elements", len(els)),
			Expected: index,
		}
	}
	return els[index], nil
}

// Count returns the number of elements matching t.
func Count(ctx context.Context, p Page, t selector.Target) (int, error) {
	els, err := Find(ctx, p, t)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}
