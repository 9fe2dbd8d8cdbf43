package handler

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/coclaude/backend/internal/application/metadata"
	"github.com/coclaude/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// MetadataHandler 对话元数据查询与更新处理器
type MetadataHandler struct {
	service *metadata.MetadataService
}

// NewMetadataHandler 创建元数据处理器
func NewMetadataHandler(service *metadata.MetadataService) *MetadataHandler {
	return &MetadataHandler{service: service}
}

// UpdateTitleRequest 重命名对话请求
type UpdateTitleRequest struct {
	// Path 对话文件完整路径
	Path string `json:"path" binding:"required"`
	// Title 新标题
	Title string `json:"title" binding:"required"`
}

// ListProjects 列出所有项目
// @Summary 列出在线项目区的全部项目
// @Tags 项目
// @Accept json
// @Produce json
// @Success 200 {object} response.Response{data=[]metadata.ProjectInfo}
// @Failure 500 {object} response.ErrorResponse
// @Router /projects [get]
func (h *MetadataHandler) ListProjects(c *gin.Context) {
	projects, err := h.service.ListProjects()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, 100003, "读取项目目录失败: "+err.Error())
		return
	}

	response.Success(c, gin.H{
		"projects": projects,
		"total":    len(projects),
	})
}

// ListConversations 列出项目内的对话元数据
// @Summary 列出项目内全部对话的元数据
// @Description 按最近活动降序；默认过滤只有后台内容和被取代的文件，archived=true 时读取归档区
// @Tags 对话
// @Accept json
// @Produce json
// @Param project path string true "项目标识"
// @Param include_background query bool false "是否包含纯后台文件"
// @Param show_superseded query bool false "是否显示被取代的文件"
// @Param archived query bool false "是否读取归档区"
// @Success 200 {object} response.Response{data=[]conversation.ResolvedMetadata}
// @Failure 500 {object} response.ErrorResponse
// @Router /projects/{project}/conversations [get]
func (h *MetadataHandler) ListConversations(c *gin.Context) {
	projectKey := c.Param("project")
	includeBackground := c.Query("include_background") == "true"
	showSuperseded := c.Query("show_superseded") == "true"
	archived := c.Query("archived") == "true"

	var (
		list interface{}
		err  error
	)
	if archived {
		list, err = h.service.ListArchived(projectKey)
	} else {
		list, err = h.service.ListProject(projectKey, includeBackground, showSuperseded)
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, 100003, "解析元数据失败: "+err.Error())
		return
	}

	response.Success(c, list)
}

// GetConversationMeta 查询单个对话的元数据
// @Summary 查询单个对话文件的元数据
// @Tags 对话
// @Accept json
// @Produce json
// @Param path query string true "对话文件完整路径"
// @Success 200 {object} response.Response{data=conversation.ResolvedMetadata}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /conversations/meta [get]
func (h *MetadataHandler) GetConversationMeta(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.Error(c, http.StatusBadRequest, 100001, "缺少 path 参数")
		return
	}

	meta, err := h.service.ResolveFile(path)
	if err != nil {
		// stat 错误被服务层包装过，必须沿错误链判断
		if errors.Is(err, fs.ErrNotExist) {
			response.Error(c, http.StatusNotFound, 100002, "对话文件不存在")
			return
		}
		response.Error(c, http.StatusInternalServerError, 100003, "解析元数据失败: "+err.Error())
		return
	}

	response.Success(c, meta)
}

// UpdateConversationMeta 重命名对话
// @Summary 重命名对话
// @Description 向文件追加一条指向当前主链终端的标题声明
// @Tags 对话
// @Accept json
// @Produce json
// @Param request body UpdateTitleRequest true "重命名请求"
// @Success 200 {object} response.Response{data=conversation.ResolvedMetadata}
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /conversations/meta [put]
func (h *MetadataHandler) UpdateConversationMeta(c *gin.Context) {
	var req UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 100001, "参数错误: "+err.Error())
		return
	}

	meta, err := h.service.UpdateTitle(req.Path, req.Title)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, 100003, "重命名失败: "+err.Error())
		return
	}

	response.Success(c, meta)
}
