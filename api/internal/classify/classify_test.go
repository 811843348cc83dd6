package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/llm/llmtest"
	"algo-viz/api/internal/prompt"
)

func TestClassifyNormalizesLabel(t *testing.T) {
	cases := map[string]ir.Domain{
		"cnn_param":                ir.DomainCNNParam,
		"  Sorting\n":              ir.DomainSorting,
		`"transformer"`:            ir.DomainTransformer,
		"```\ncache\n```":          ir.DomainCache,
		"math.":                    ir.DomainMath,
		"generic\nbecause reasons": ir.DomainGeneric,
		"graph":                    ir.Domain("graph"),
	}
	for reply, want := range cases {
		o := llmtest.New().On(prompt.Classify, reply)
		got, err := New(o, prompt.MustLoad(), nil).Classify(context.Background(), "some text")
		require.NoError(t, err, reply)
		assert.Equal(t, want, got, reply)
	}
}

func TestClassifySendsText(t *testing.T) {
	o := llmtest.New().On(prompt.Classify, "sorting")
	_, err := New(o, prompt.MustLoad(), nil).Classify(context.Background(), "Sort [5, 1, 4, 2, 8] with bubble sort")
	require.NoError(t, err)

	calls := o.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Sort [5, 1, 4, 2, 8] with bubble sort", calls[0].User)
	assert.Contains(t, calls[0].System, "cnn_param, sorting, transformer")
	assert.False(t, calls[0].JSON)
}

func TestClassifyErrors(t *testing.T) {
	o := llmtest.New().On(prompt.Classify, "  \n ")
	_, err := New(o, prompt.MustLoad(), nil).Classify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyLabel)

	boom := errors.New("connection refused")
	o = llmtest.New().Fail(prompt.Classify, boom)
	_, err = New(o, prompt.MustLoad(), nil).Classify(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}
