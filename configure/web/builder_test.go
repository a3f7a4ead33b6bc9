package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------- Helper ----------------

func newTestLogger() logging.Logger {
	builder := logging.NewLoggingBuilder()
	builder.AddConsole(logging.ConsoleLoggerOptions{
		Output:      os.Stdout,
		ColorOutput: false,
	})
	factory := builder.Build()
	return factory.CreateLogger("test")
}

// ---------------- Mock Controllers ----------------

// SimpleController 普通控制器
type SimpleController struct {
	Check string
}

func (c *SimpleController) RegisterRoutes(router gin.IRouter) {
	router.GET("/simple", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "simple")
	})
}

// DepService 模拟依赖服务
type DepService struct {
	Value string
}

// ControllerWithDep 带依赖的控制器 (构造函数注入)
type ControllerWithDep struct {
	Svc *DepService
}

func NewControllerWithDep(svc *DepService) *ControllerWithDep {
	return &ControllerWithDep{Svc: svc}
}

func (c *ControllerWithDep) RegisterRoutes(router gin.IRouter) {
	router.GET("/dep", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, c.Svc.Value)
	})
}

// ControllerWithTag 带标签的控制器 (字段注入)
type ControllerWithTag struct {
	Svc *DepService `inject:""`
}

func (c *ControllerWithTag) RegisterRoutes(router gin.IRouter) {
	router.GET("/tag", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "tag:"+c.Svc.Value)
	})
}

// ---------------- Tests ----------------

func TestWebBuilder_AddControllers(t *testing.T) {
	logger := newTestLogger()
	beans := ioc.NewBeanFactory(ioc.WithLogger(logger))

	// 注册依赖服务
	ioc.Register[*DepService](beans, "depService",
		ioc.WithValue(&DepService{Value: "injected-value"}))

	builder := NewBuilder(logger)

	// 方式 A: 构造函数
	builder.AddControllers(NewControllerWithDep)

	// 方式 B: 实例指针 (带标签)
	builder.AddControllers(&ControllerWithTag{})

	// 方式 C: 实例指针 (无依赖)
	builder.AddControllers(&SimpleController{})

	host := builder.Build(beans)

	// 路由挂载（通常在 Start 中调用，这里手动调用以测试）
	require.NoError(t, host.mapControllers())

	router := host.engine

	// Case 1: Simple
	w1 := httptest.NewRecorder()
	req1, _ := http.NewRequest("GET", "/simple", nil)
	router.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "simple", w1.Body.String())

	// Case 2: 构造函数注入
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/dep", nil)
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "injected-value", w2.Body.String())

	// Case 3: 标签注入
	w3 := httptest.NewRecorder()
	req3, _ := http.NewRequest("GET", "/tag", nil)
	router.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusOK, w3.Code)
	assert.Equal(t, "tag:injected-value", w3.Body.String())
}

func TestWebBuilder_DuplicateRegistration(t *testing.T) {
	logger := newTestLogger()
	beans := ioc.NewBeanFactory(ioc.WithLogger(logger))

	ioc.Register[*DepService](beans, "depService",
		ioc.WithValue(&DepService{Value: "v"}))

	builder := NewBuilder(logger)

	// 故意添加两次相同的控制器
	builder.AddControllers(NewControllerWithDep)
	builder.AddControllers(NewControllerWithDep)

	// Build 不应 panic，重复注册记录警告并继续
	host := builder.Build(beans)
	assert.NotEmpty(t, host.controllerNames)

	// 重复名称在挂载时去重，路由不会注册两次
	require.NoError(t, host.mapControllers())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/dep", nil)
	host.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebBuilder_Routes(t *testing.T) {
	logger := newTestLogger()
	builder := NewBuilder(logger)

	builder.Get("/ping", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	builder.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}
