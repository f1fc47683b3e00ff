package services

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/chatflow/pkg/channels/gochannel"
	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestFlowAuditLog_RecordsLifecycleOverEventBus(t *testing.T) {
	pub, sub := gochannel.CreateTestChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	out := &lockedBuffer{}
	audit := NewFlowAuditLog(slog.New(slog.NewTextHandler(out, nil)))

	require.NoError(t, audit.Register(bus))
	require.NoError(t, bus.Subscribe(t.Context()))

	service := NewFlow(file.NewPersistence(t.TempDir()), bus, discardLogger())

	created, err := service.Create(t.Context(), "Welcome", "")
	require.NoError(t, err)

	copied, err := service.Duplicate(t.Context(), created.ID)
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), created.ID))

	logged := out.String()
	assert.Contains(t, logged, `msg="Flow created"`)
	assert.Contains(t, logged, "flow_id="+created.ID)
	assert.Contains(t, logged, "nodes=2 edges=1")
	assert.Contains(t, logged, `msg="Flow duplicated" module=flow_audit flow_id=`+copied.ID+" source_flow_id="+created.ID)
	assert.Contains(t, logged, `msg="Flow deleted" module=flow_audit flow_id=`+created.ID)
}

func TestFlowAuditLog_RegistersEveryEventType(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Handle", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, NewFlowAuditLog(discardLogger()).Register(bus))

	for _, eventType := range []events.EventType{events.FlowSavedEvent, events.FlowDeletedEvent, events.FlowDuplicatedEvent} {
		bus.AssertCalled(t, "Handle", eventType, mock.Anything)
	}
}

func TestFlowAuditLog_RejectsWrongPayload(t *testing.T) {
	audit := NewFlowAuditLog(discardLogger())

	assert.Error(t, audit.handleSaved(t.Context(), &events.FlowDeleted{}))
	assert.Error(t, audit.handleDeleted(t.Context(), "flow-1"))
	assert.Error(t, audit.handleDuplicated(t.Context(), nil))
}
