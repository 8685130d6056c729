package isolate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	blockAfter  int // existence check succeeds from this call on (0 = never)
	visible     bool
	waitErr     error
	existsCalls int
	calls       []string
	hideArgs    []any
}

func (f *fakePage) Eval(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	switch script {
	case existsScript:
		f.calls = append(f.calls, "exists")
		f.existsCalls++
		return json.Marshal(f.blockAfter > 0 && f.existsCalls >= f.blockAfter)
	case hideVisibilityScript:
		f.calls = append(f.calls, "hide")
		f.hideArgs = args
		return json.Marshal(len(args[0].([]string)))
	case isolateBlockScript:
		f.calls = append(f.calls, "isolate")
		f.hideArgs = args
		return json.Marshal(7)
	case visibleScript:
		f.calls = append(f.calls, "visible")
		return json.Marshal(f.visible)
	}
	return nil, errors.New("unexpected script")
}

func (f *fakePage) WaitVisible(ctx context.Context, selector string) error {
	f.calls = append(f.calls, "wait")
	return f.waitErr
}

func block() SingleBlock {
	return SingleBlock{
		Block:    `[data-block="content-main"]`,
		Hide:     []string{".cookie-banner"},
		Attempts: 3,
		Delay:    time.Millisecond,
	}
}

func TestWholePage(t *testing.T) {
	page := &fakePage{}
	out, err := WholePage{Hide: []string{".ad", "#chat"}}.Apply(context.Background(), zerolog.Nop(), page)
	require.NoError(t, err)
	require.Equal(t, Outcome{Hidden: 2}, out)
	require.Equal(t, []string{"hide"}, page.calls)
	require.Equal(t, []any{[]string{".ad", "#chat"}}, page.hideArgs)
}

func TestWholePageNothingToHide(t *testing.T) {
	page := &fakePage{}
	out, err := WholePage{}.Apply(context.Background(), zerolog.Nop(), page)
	require.NoError(t, err)
	require.Equal(t, Outcome{}, out)
	require.Empty(t, page.calls)
}

func TestSingleBlockIsolates(t *testing.T) {
	page := &fakePage{blockAfter: 2, visible: true}
	out, err := block().Apply(context.Background(), zerolog.Nop(), page)
	require.NoError(t, err)
	require.Equal(t, Outcome{Isolated: true, Hidden: 7}, out)
	require.Equal(t, []string{"exists", "exists", "wait", "isolate", "visible"}, page.calls)
	require.Equal(t, []any{`[data-block="content-main"]`, []string{".cookie-banner"}}, page.hideArgs)
}

func TestSingleBlockFallsBackWhenAbsent(t *testing.T) {
	page := &fakePage{}
	out, err := block().Apply(context.Background(), zerolog.Nop(), page)
	require.NoError(t, err)
	require.Equal(t, Outcome{FellBack: true}, out)
	require.Equal(t, 3, page.existsCalls)
	require.NotContains(t, page.calls, "isolate")
}

func TestSingleBlockNotVisibleIsNotAnError(t *testing.T) {
	page := &fakePage{blockAfter: 1, visible: false, waitErr: context.DeadlineExceeded}
	out, err := block().Apply(context.Background(), zerolog.Nop(), page)
	require.NoError(t, err)
	require.True(t, out.Isolated)
	require.True(t, out.NotVisible)
}

func TestSingleBlockCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := block().Apply(ctx, zerolog.Nop(), &fakePage{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSplitSelectors(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "NULL", want: nil},
		{in: " .a , #b ,, ", want: []string{".a", "#b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, SplitSelectors(tt.in))
		})
	}
}
