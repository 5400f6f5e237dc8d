package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type kinded struct{}

func (kinded) Error() string   { return "tool failed" }
func (kinded) ErrorKind() Kind { return KindTranscoding }

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
		{name: "tagged", err: NotFound("op", "minutes"), want: KindNotFound},
		{name: "fmt wrapped", err: fmt.Errorf("outer: %w", Forbidden("op")), want: KindForbidden},
		{name: "kind carrier", err: fmt.Errorf("x: %w", kinded{}), want: KindTranscoding},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestWrapKeepsInnermostKind(t *testing.T) {
	inner := New(KindEmbedding, "embed", "status 500")
	err := Wrap(KindInternal, "pipeline.embed", inner)

	assert.True(t, Is(err, KindEmbedding))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "pipeline.embed: embed: status 500", err.Error())
	assert.Nil(t, Wrap(KindInternal, "noop", nil))
}
