package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	errs      []error
	transient bool
	calls     int
}

func (s *scriptedClient) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return feed(NewTextChunk("ok"), NewFinalChunk(StopReasonEndTurn, nil)), nil
}

func (s *scriptedClient) IsTransientError(err error) bool { return s.transient }

func TestFallbackClientRetriesTransientErrors(t *testing.T) {
	primary := &scriptedClient{errs: []error{errors.New("503"), nil}, transient: true}
	f := &FallbackClient{Clients: []LLMClient{primary}, MaxRetries: 3}

	ch, err := f.StreamChat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	resp, err := Collect(context.Background(), ch)
	require.NoError(t, err)
	text, _ := resp.Text()
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, primary.calls)
}

func TestFallbackClientMovesToNextProvider(t *testing.T) {
	primary := &scriptedClient{errs: []error{errors.New("401 unauthorized")}}
	secondary := &scriptedClient{}
	f := &FallbackClient{Clients: []LLMClient{primary, secondary}, MaxRetries: 3}

	_, err := f.StreamChat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackClientAllFail(t *testing.T) {
	last := errors.New("connection refused")
	f := &FallbackClient{Clients: []LLMClient{
		&scriptedClient{errs: []error{errors.New("first")}},
		&scriptedClient{errs: []error{last}},
	}}

	_, err := f.StreamChat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, last)
	assert.False(t, f.IsTransientError(err))
}

func TestChatHistoryCopies(t *testing.T) {
	h := NewChatHistory()
	h.Add(NewUserMessage("hi"))
	msgs := h.GetMessages()
	msgs[0].Role = RoleAssistant

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, RoleUser, h.GetMessages()[0].Role)
}
