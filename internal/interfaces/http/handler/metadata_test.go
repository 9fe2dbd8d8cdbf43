package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coclaude/backend/internal/application/metadata"
	"github.com/coclaude/backend/internal/infrastructure/cache"
	"github.com/coclaude/backend/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRouter 在临时目录上构造服务与路由
func setupTestRouter(t *testing.T) (*gin.Engine, *config.ClaudeConfig) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	claudeCfg := &config.ClaudeConfig{RootDir: t.TempDir()}
	store := cache.NewCacheStore(&config.CacheConfig{
		ResolvedTTL:      config.Duration(time.Minute),
		MaxRecordEntries: 100,
		SweepInterval:    config.Duration(time.Minute),
	})
	resolverCfg := &config.ResolverConfig{
		BootstrapDenylist: []string{"caveat"},
		HeadLines:         50,
	}
	svc := metadata.NewMetadataService(
		metadata.NewDirectoryScanner(claudeCfg),
		metadata.NewResolver(resolverCfg),
		store,
		nil,
		nil,
		resolverCfg,
	)

	metadataHandler := NewMetadataHandler(svc)
	cacheHandler := NewCacheHandler(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	api.GET("/projects", metadataHandler.ListProjects)
	api.GET("/projects/:project/conversations", metadataHandler.ListConversations)
	api.GET("/conversations/meta", metadataHandler.GetConversationMeta)
	api.PUT("/conversations/meta", metadataHandler.UpdateConversationMeta)
	api.POST("/cache/invalidate", cacheHandler.Invalidate)
	api.POST("/conversations/notify", cacheHandler.NotifyChange)

	return router, claudeCfg
}

// writeConversation 写入一个最小对话文件
func writeConversation(t *testing.T, claudeCfg *config.ClaudeConfig, projectKey, sessionID, text, ts string) string {
	t.Helper()
	dir := filepath.Join(claudeCfg.ProjectsDir(), projectKey)
	require.NoError(t, os.MkdirAll(dir, 0755))

	line := fmt.Sprintf(
		`{"type":"user","uuid":"%s-u1","parentUuid":null,"isSidechain":false,"timestamp":%q,"sessionId":%q,"message":{"role":"user","content":%q}}`,
		sessionID, ts, sessionID, text,
	)
	path := filepath.Join(dir, sessionID+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0644))
	return path
}

// doRequest 执行请求并解码响应
func doRequest(t *testing.T, router *gin.Engine, method, url string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestMetadataHandler_ListProjects(t *testing.T) {
	router, claudeCfg := setupTestRouter(t)
	writeConversation(t, claudeCfg, "proj-a", "s1", "hello", "2026-01-01T10:00:00Z")

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/projects", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
}

func TestMetadataHandler_ListConversations(t *testing.T) {
	router, claudeCfg := setupTestRouter(t)
	writeConversation(t, claudeCfg, "proj-a", "s1", "first question", "2026-01-01T10:00:00Z")
	writeConversation(t, claudeCfg, "proj-a", "s2", "second question", "2026-01-02T10:00:00Z")

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/projects/proj-a/conversations", nil)

	require.Equal(t, http.StatusOK, w.Code)
	list := resp["data"].([]interface{})
	require.Len(t, list, 2)

	first := list[0].(map[string]interface{})
	assert.Equal(t, "second question", first["title"], "最近活动排在前面")
}

func TestMetadataHandler_ListConversations_ShowSuperseded(t *testing.T) {
	router, claudeCfg := setupTestRouter(t)
	dir := filepath.Join(claudeCfg.ProjectsDir(), "proj-a")
	require.NoError(t, os.MkdirAll(dir, 0755))

	// old 的终端 u1 被 new 的声明引用，old 被取代
	old := `{"type":"user","uuid":"u1","parentUuid":null,"isSidechain":false,"timestamp":"2026-01-01T10:00:00Z","sessionId":"old","message":{"role":"user","content":"start"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.jsonl"), []byte(old+"\n"), 0644))
	newer := `{"type":"summary","summary":"Thread title","leafUuid":"u1"}` + "\n" +
		`{"type":"user","uuid":"v1","parentUuid":null,"isSidechain":false,"timestamp":"2026-01-02T10:00:00Z","sessionId":"new","message":{"role":"user","content":"continuation"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.jsonl"), []byte(newer+"\n"), 0644))

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/projects/proj-a/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"].([]interface{}), 1, "默认隐藏被取代的文件")

	w, resp = doRequest(t, router, http.MethodGet, "/api/v1/projects/proj-a/conversations?show_superseded=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"].([]interface{}), 2)
}

func TestMetadataHandler_GetConversationMeta(t *testing.T) {
	router, claudeCfg := setupTestRouter(t)
	path := writeConversation(t, claudeCfg, "proj-a", "s1", "hello", "2026-01-01T10:00:00Z")

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/conversations/meta?path="+path, nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "hello", data["title"])
	assert.Equal(t, "s1", data["session_id"])
}

func TestMetadataHandler_GetConversationMeta_Errors(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, _ := doRequest(t, router, http.MethodGet, "/api/v1/conversations/meta", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doRequest(t, router, http.MethodGet, "/api/v1/conversations/meta?path=/nope/x.jsonl", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetadataHandler_UpdateConversationMeta(t *testing.T) {
	router, claudeCfg := setupTestRouter(t)
	path := writeConversation(t, claudeCfg, "proj-a", "s1", "hello", "2026-01-01T10:00:00Z")

	w, resp := doRequest(t, router, http.MethodPut, "/api/v1/conversations/meta", UpdateTitleRequest{
		Path:  path,
		Title: "Renamed",
	})

	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Renamed", data["title"])
	assert.Equal(t, "declared", data["title_source"])

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"summary":"Renamed"`)
}

func TestCacheHandler_Invalidate(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, _ := doRequest(t, router, http.MethodPost, "/api/v1/cache/invalidate", InvalidateRequest{
		ProjectKey: "proj-a",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// 空请求拒绝
	w, _ = doRequest(t, router, http.MethodPost, "/api/v1/cache/invalidate", InvalidateRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCacheHandler_NotifyChange(t *testing.T) {
	router, claudeCfg := setupTestRouter(t)
	path := writeConversation(t, claudeCfg, "proj-a", "s1", "hello", "2026-01-01T10:00:00Z")

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/conversations/notify", NotifyRequest{
		Path: path,
	})

	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["accepted"])

	// 删除类通知对已消失的文件同样接受
	require.NoError(t, os.Remove(path))
	w, _ = doRequest(t, router, http.MethodPost, "/api/v1/conversations/notify", NotifyRequest{
		Path: path,
		Kind: "deleted",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}
