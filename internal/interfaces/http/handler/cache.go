package handler

import (
	"net/http"

	"github.com/coclaude/backend/internal/application/metadata"
	"github.com/coclaude/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// CacheHandler 缓存失效与外部变更通知处理器
type CacheHandler struct {
	service *metadata.MetadataService
}

// NewCacheHandler 创建缓存处理器
func NewCacheHandler(service *metadata.MetadataService) *CacheHandler {
	return &CacheHandler{service: service}
}

// InvalidateRequest 缓存失效请求
// 给 path 失效单个文件，只给 project_key 失效整个项目
type InvalidateRequest struct {
	// ProjectKey 项目标识
	ProjectKey string `json:"project_key"`
	// Path 对话文件完整路径（可选）
	Path string `json:"path"`
}

// NotifyRequest 外部写入方的变更通知
// 供无法依赖文件系统事件的协作方（如 WSL 跨文件系统）主动上报
type NotifyRequest struct {
	// Path 变更的对话文件完整路径
	Path string `json:"path" binding:"required"`
	// Kind 变更类型：created/modified/deleted，留空按 modified 处理
	Kind string `json:"kind"`
}

// Invalidate 手动缓存失效
// @Summary 手动失效缓存
// @Description path 非空时失效单个文件，否则失效 project_key 指定的整个项目
// @Tags 缓存
// @Accept json
// @Produce json
// @Param request body InvalidateRequest true "失效请求"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /cache/invalidate [post]
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误: "+err.Error())
		return
	}

	switch {
	case req.Path != "":
		h.service.InvalidateFile(req.Path)
	case req.ProjectKey != "":
		h.service.InvalidateProject(req.ProjectKey)
	default:
		response.Error(c, http.StatusBadRequest, 100001, "project_key 与 path 至少给一个")
		return
	}

	response.Success(c, gin.H{"invalidated": true})
}

// NotifyChange 外部变更通知
// @Summary 上报对话文件变更
// @Description 与文件监听等价的失效入口，供监听不可用的环境使用；kind=deleted 时不再探测文件
// @Tags 缓存
// @Accept json
// @Produce json
// @Param request body NotifyRequest true "变更通知"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /conversations/notify [post]
func (h *CacheHandler) NotifyChange(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误: "+err.Error())
		return
	}

	h.service.NotifyChange(req.Path, req.Kind)
	response.Success(c, gin.H{"accepted": true})
}
