package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	resp  Response
	err   error
	calls int
}

func (s *stubClient) Complete(context.Context, Request) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestFallbackClientUsesPrimary(t *testing.T) {
	primary := &stubClient{resp: Response{Text: "from primary"}}
	secondary := &stubClient{resp: Response{Text: "from fallback"}}
	client := NewFallbackClient(primary, secondary, nil)

	resp, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "from primary", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestFallbackClientFallsBack(t *testing.T) {
	primary := &stubClient{err: errors.New("primary down")}
	secondary := &stubClient{resp: Response{Text: "from fallback"}}
	client := NewFallbackClient(primary, secondary, nil)

	resp, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackClientBothFail(t *testing.T) {
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")
	client := NewFallbackClient(&stubClient{err: primaryErr}, &stubClient{err: fallbackErr}, nil)

	_, err := client.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, fallbackErr)
}

func TestFallbackClientNilFallback(t *testing.T) {
	primaryErr := errors.New("primary down")
	client := NewFallbackClient(&stubClient{err: primaryErr}, nil, nil)

	_, err := client.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, primaryErr)
}
