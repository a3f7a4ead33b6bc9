package database_test

import (
	"testing"

	"github.com/gobeans/beans/config"
	"github.com/gobeans/beans/configure/database"
	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name string
}

// MockDBService 模拟依赖数据库实例的服务
type MockDBService struct {
	Master *gorm.DB `inject:"db:master"`
	Slave  *gorm.DB `inject:"db:slave,optional"`
}

// DBConfig 模拟用户定义的配置结构
type DBConfig struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func TestDatabaseConfiguration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	// 1. 配置内存配置源
	builder.ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
		cb.AddInMemory(map[string]any{
			"db": map[string]any{
				"master": map[string]any{
					"dsn":            "file::memory:?cache=shared",
					"max_open_conns": 5,
				},
			},
		})
	})

	// 2. 配置 Database (演示 config.Load 的使用)
	builder.Configure(database.Configure(func(b *database.Builder) {
		dbConf, err := config.Load[DBConfig](b.ConfigContext().GetConfiguration(), "db.master")
		require.NoError(t, err)

		b.Add("master", sqlite.Open(dbConf.DSN), func(o *database.DatabaseOptions) {
			o.MaxOpenConns = dbConf.MaxOpenConns
			o.AutoMigrate = []any{&User{}}
		})
	}))

	// 3. 注册依赖数据库的服务
	builder.ConfigureServices(func(f *ioc.BeanFactory) {
		ioc.Register[*MockDBService](f, "mockDBService")
	})

	app := builder.Build()

	var svc *MockDBService
	app.GetService(&svc)

	require.NotNil(t, svc.Master, "Master DB should be injected")
	assert.Nil(t, svc.Slave, "Optional missing instance should stay nil")

	// 验证连接池配置生效
	sqlDB, err := svc.Master.DB()
	require.NoError(t, err)
	assert.Equal(t, 5, sqlDB.Stats().MaxOpenConnections)

	// 验证数据库可用
	require.NoError(t, svc.Master.Create(&User{Name: "test"}).Error)

	// 具名 Bean 解析
	db, err := app.Services().GetBean("db:master")
	require.NoError(t, err)
	assert.Same(t, svc.Master, db.(*gorm.DB))
}

func TestDatabaseBuilder_Errors(t *testing.T) {
	builder := database.NewBuilder(nil)

	// Dialector 缺失
	builder.Add("invalid", nil, nil)

	// 重复配置
	builder.Add("dup", sqlite.Open("file::memory:"), nil)
	builder.Add("dup", sqlite.Open("file::memory:"), nil)

	_, err := builder.Build(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
	assert.Contains(t, err.Error(), "already configured")
}

func TestDatabaseFactory_Get(t *testing.T) {
	factory := database.NewDatabaseFactory()
	require.NoError(t, factory.Register(*database.NewDefaultOptions("main", sqlite.Open("file::memory:"))))

	db, err := factory.Get("main")
	require.NoError(t, err)
	assert.NotNil(t, db)

	_, err = factory.Get("missing")
	assert.Error(t, err)

	require.NoError(t, factory.Close())
}
