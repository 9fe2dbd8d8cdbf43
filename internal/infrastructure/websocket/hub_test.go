package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvNotice(t *testing.T, ch chan []byte) *UpdateNotice {
	t.Helper()
	select {
	case data := <-ch:
		var notice UpdateNotice
		require.NoError(t, json.Unmarshal(data, &notice))
		return &notice
	case <-time.After(time.Second):
		return nil
	}
}

func TestHub_ProjectScopedDelivery(t *testing.T) {
	hub := NewHub()
	hub.Start()

	projSub := &Connection{ProjectKey: "proj-a", Send: make(chan []byte, 4)}
	allSub := &Connection{ProjectKey: "", Send: make(chan []byte, 4)}
	hub.Register(projSub)
	hub.Register(allSub)

	require.NoError(t, hub.Push("proj-a", "/p/s1.jsonl", "modified"))

	notice := recvNotice(t, projSub.Send)
	require.NotNil(t, notice, "项目订阅方应收到本项目通知")
	assert.Equal(t, "proj-a", notice.ProjectKey)
	assert.Equal(t, "modified", notice.Kind)

	notice = recvNotice(t, allSub.Send)
	require.NotNil(t, notice, "全量订阅方应收到全部项目的通知")
	assert.Equal(t, "/p/s1.jsonl", notice.Path)
}

func TestHub_OtherProjectNotDelivered(t *testing.T) {
	hub := NewHub()
	hub.Start()

	projSub := &Connection{ProjectKey: "proj-a", Send: make(chan []byte, 4)}
	hub.Register(projSub)

	require.NoError(t, hub.Push("proj-b", "", "invalidated"))

	select {
	case <-projSub.Send:
		t.Fatal("不应收到其他项目的通知")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	hub.Start()

	sub := &Connection{ProjectKey: "proj-a", Send: make(chan []byte, 4)}
	hub.Register(sub)
	hub.Unregister(sub)

	// 注销后 Send 被关闭
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
