package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saurav-z/mongodeck"
)

const (
	headerToken = "X-Mongodeck-Token"
	headerURL   = "X-Mongodeck-Url"

	contextIdentityKey = "mongodeck_identity"
)

// Server HTTP 管理服务。连接标识通过会话令牌或显式请求头
// 逐请求携带，服务本身不保存缺省连接。
type Server struct {
	client   *mongodeck.AdminClient
	sessions SessionStore
	engine   *gin.Engine
	server   *http.Server
}

// NewServer 创建 HTTP 管理服务
func NewServer(client *mongodeck.AdminClient, sessions SessionStore) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		client:   client,
		sessions: sessions,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Handler 返回底层 http.Handler，测试中配合 httptest 使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.POST("/connect", s.handleConnect)

	authed := api.Group("")
	authed.Use(s.identityMiddleware())
	{
		authed.DELETE("/connect", s.handleDisconnect)
		authed.POST("/execute", s.handleExecute)
		authed.GET("/databases", s.handleListDatabases)
		authed.GET("/databases/:db/collections", s.handleListCollections)

		docs := authed.Group("/databases/:db/collections/:coll")
		{
			docs.GET("/documents", s.handleFindDocuments)
			docs.POST("/documents", s.handleInsertDocument)
			docs.PUT("/documents", s.handleUpdateDocuments)
			docs.DELETE("/documents", s.handleDeleteDocuments)
			docs.GET("/documents/count", s.handleCountDocuments)
			docs.POST("/import", s.handleImport)
			docs.POST("/export", s.handleExport)
		}

		authed.GET("/metrics/summary", s.handleMetricsSummary)
	}
}

// identityMiddleware 解析请求携带的连接标识：优先会话令牌，
// 其次显式连接串请求头，两者都缺失时拒绝请求
func (s *Server) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var identity string

		if token := c.GetHeader(headerToken); token != "" {
			resolved, err := s.sessions.Get(c.Request.Context(), token)
			if err != nil {
				if errors.Is(err, ErrSessionNotFound) {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown or expired session token"})
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			identity = resolved
		} else if url := c.GetHeader(headerURL); url != "" {
			identity = url
		}

		if identity == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": mongodeck.ErrMissingIdentity.Error()})
			return
		}

		c.Set(contextIdentityKey, identity)
		c.Request = c.Request.WithContext(mongodeck.WithConnectionIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

func (s *Server) identity(c *gin.Context) string {
	return c.GetString(contextIdentityKey)
}

type connectRequest struct {
	URL string `json:"url" binding:"required"`
}

// handleConnect 建立连接并签发会话令牌
func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must include a non-empty url"})
		return
	}

	if err := s.client.OpenConnection(c.Request.Context(), req.URL); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	token, err := NewSessionToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.sessions.Put(c.Request.Context(), token, req.URL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleDisconnect 关闭连接并吊销会话令牌
func (s *Server) handleDisconnect(c *gin.Context) {
	identity := s.identity(c)

	if err := s.client.Disconnect(c.Request.Context(), identity); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if token := c.GetHeader(headerToken); token != "" {
		if err := s.sessions.Delete(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"disconnected": true})
}

type executeRequest struct {
	Command string `json:"command"`
}

// handleExecute 执行命令文本。信封始终以 200 返回，
// 执行结果的成败由信封的 success 字段表达。
func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must include a command string"})
		return
	}

	result := s.client.ExecuteCommand(c.Request.Context(), s.identity(c), req.Command)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListDatabases(c *gin.Context) {
	names, err := s.client.ListDatabases(c.Request.Context(), s.identity(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"databases": names})
}

func (s *Server) handleListCollections(c *gin.Context) {
	names, err := s.client.ListCollections(c.Request.Context(), s.identity(c), c.Param("db"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": names})
}

type findRequest struct {
	Filter     map[string]interface{} `json:"filter"`
	Sort       map[string]interface{} `json:"sort"`
	Projection map[string]interface{} `json:"projection"`
	Skip       int64                  `json:"skip"`
	Limit      int64                  `json:"limit"`
}

func (s *Server) handleFindDocuments(c *gin.Context) {
	var req findRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	documents, err := s.client.FindDocuments(c.Request.Context(), s.identity(c), c.Param("db"), c.Param("coll"), mongodeck.QueryOptions{
		Filter:     req.Filter,
		Sort:       req.Sort,
		Projection: req.Projection,
		Skip:       req.Skip,
		Limit:      req.Limit,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": documents, "count": len(documents)})
}

func (s *Server) handleCountDocuments(c *gin.Context) {
	var req findRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	count, err := s.client.CountDocuments(c.Request.Context(), s.identity(c), c.Param("db"), c.Param("coll"), req.Filter)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleInsertDocument(c *gin.Context) {
	var document map[string]interface{}
	if err := c.ShouldBindJSON(&document); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON document"})
		return
	}

	id, err := s.client.InsertDocument(c.Request.Context(), s.identity(c), c.Param("db"), c.Param("coll"), document)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted_id": id})
}

type updateRequest struct {
	Filter map[string]interface{} `json:"filter"`
	Update map[string]interface{} `json:"update" binding:"required"`
}

func (s *Server) handleUpdateDocuments(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must include filter and update documents"})
		return
	}

	modified, err := s.client.UpdateDocuments(c.Request.Context(), s.identity(c), c.Param("db"), c.Param("coll"), req.Filter, req.Update)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"modified": modified})
}

type deleteRequest struct {
	Filter map[string]interface{} `json:"filter" binding:"required"`
}

func (s *Server) handleDeleteDocuments(c *gin.Context) {
	// 删除必须显式携带 filter，拒绝静默清空集合
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must include a filter document"})
		return
	}

	deleted, err := s.client.DeleteDocuments(c.Request.Context(), s.identity(c), c.Param("db"), c.Param("coll"), req.Filter)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

type importRequest struct {
	Documents []map[string]interface{} `json:"documents" binding:"required"`
}

func (s *Server) handleImport(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must include a documents array"})
		return
	}

	result, err := s.client.ImportDocuments(c.Request.Context(), s.identity(c), c.Param("db"), c.Param("coll"), req.Documents)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

type exportRequest struct {
	Filter map[string]interface{} `json:"filter"`
	Limit  int64                  `json:"limit"`
}

func (s *Server) handleExport(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	documents, err := s.client.ExportDocuments(c.Request.Context(), s.identity(c), c.Param("db"), c.Param("coll"), req.Filter, req.Limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": documents, "count": len(documents)})
}

func (s *Server) handleMetricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.client.Metrics().GetMetrics())
}

// Start 在指定地址启动 HTTP 服务并阻塞
func (s *Server) Start(addr string) error {
	s.server = &http.Server{Addr: addr, Handler: s.engine}
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
