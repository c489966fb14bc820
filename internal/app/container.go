package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/you/bookauth/domain"
	"github.com/you/bookauth/internal/config"
	httpx "github.com/you/bookauth/internal/http"
	"github.com/you/bookauth/internal/http/handlers"
	"github.com/you/bookauth/internal/http/middleware"
	"github.com/you/bookauth/internal/infrastructure/auth"
	"github.com/you/bookauth/internal/infrastructure/database"
	"github.com/you/bookauth/internal/infrastructure/events"
	"github.com/you/bookauth/internal/infrastructure/repositories"
	"github.com/you/bookauth/internal/services"
)

// Container holds all dependencies
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Casbin      *auth.CasbinService

	// Stores
	Store    domain.Transactor
	Cache    domain.SessionCache
	Throttle domain.LoginThrottle
	Events   domain.EventPublisher

	// Services
	PasswordSvc domain.PasswordService
	TokenSvc    domain.TokenService
	AuthSvc     domain.AuthService
	AccountSvc  domain.AccountService
	PolicySvc   domain.PolicyService
	Maintenance *services.MaintenanceWorker
}

// NewContainer creates and initializes all dependencies
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", c.initDatabase},
		{"redis", c.initRedis},
		{"casbin", c.initCasbin},
		{"events", c.initEvents},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	c.initServices()
	return c, nil
}

func (c *Container) initDatabase(context.Context) error {
	db, err := database.Open(c.Config.DSN, c.Config.DBLogLevel, database.PoolConfig{
		MaxOpenConns:    c.Config.DBMaxOpenConns,
		MaxIdleConns:    c.Config.DBMaxIdleConns,
		ConnMaxLifetime: c.Config.DBConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	c.DB = db
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	c.Store = database.NewTransactor(db)
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rdb := database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	c.RedisClient = rdb.Client
	if err := rdb.Ping(ctx); err != nil {
		return err
	}
	c.Cache = repositories.NewSessionCache(c.RedisClient, c.Config.RefreshTTL)
	if c.Config.LoginThrottleLimit > 0 {
		c.Throttle = repositories.NewLoginThrottle(c.RedisClient, c.Config.LoginThrottleLimit, c.Config.LoginThrottleWindow)
	}
	return nil
}

func (c *Container) initCasbin(context.Context) error {
	cas, err := auth.NewCasbinService(c.DB, c.Config.CasbinModelPath)
	if err != nil {
		return err
	}
	seeded, err := cas.SeedDefaults()
	if err != nil {
		return err
	}
	if seeded {
		c.Logger.Info("casbin: seeded default policies")
	}
	c.Casbin = cas
	return nil
}

func (c *Container) initEvents(context.Context) error {
	if len(c.Config.KafkaBrokers) == 0 {
		c.Events = events.NewLogPublisher(c.Logger)
		return nil
	}
	publisher, err := events.NewKafkaPublisher(c.Config.KafkaBrokers, c.Config.KafkaTopic, c.Logger)
	if err != nil {
		return err
	}
	c.Events = publisher
	return nil
}

func (c *Container) initServices() {
	lockout := domain.LockoutPolicy{
		Threshold:  c.Config.LockoutThreshold,
		Duration:   c.Config.LockoutDuration,
		AutoUnlock: c.Config.AutoUnlock,
	}

	c.PasswordSvc = auth.NewPasswordService(c.Config.BcryptCost)
	c.TokenSvc = auth.NewJWTService(c.Config.JWTSecret, c.Config.JWTIssuer, c.Config.AccessTTL, c.Config.RefreshTTL)
	c.AuthSvc = services.NewAuthService(c.Store, c.PasswordSvc, c.TokenSvc, c.Cache, c.Events, lockout, c.Logger)
	c.AccountSvc = services.NewAccountService(c.Store, c.PasswordSvc, c.Cache, c.Events, lockout, c.Logger)
	c.PolicySvc = services.NewPolicyService(c.Casbin.E)
	c.Maintenance = services.NewMaintenanceWorker(c.AccountSvc, c.Config.MaintenanceInterval, c.Logger)
}

// Router builds the HTTP handler tree
func (c *Container) Router() *gin.Engine {
	return httpx.BuildRouter(httpx.Handlers{
		Auth:     handlers.NewAuthHandlers(c.AuthSvc, c.AccountSvc, c.Logger),
		Accounts: handlers.NewAccountHandlers(c.AuthSvc, c.AccountSvc, c.Logger),
		Policies: handlers.NewPolicyHandlers(c.PolicySvc, c.Logger),
		JWT:      middleware.NewAuthMW(c.AuthSvc, c.Logger),
		Casbin:   middleware.NewCasbinMW(services.NewCasbinEnforcerWrapper(c.Casbin.E), c.Config.OwnershipRules, c.Logger),
		Throttle: c.Throttle,
		Logger:   c.Logger,
	})
}

// BootstrapAdmin creates the configured super admin when its username is free
func (c *Container) BootstrapAdmin(ctx context.Context) error {
	b := c.Config.BootstrapAdmin
	if b.Username == "" {
		return nil
	}

	available, err := c.AuthSvc.IsUsernameAvailable(ctx, b.Username)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if !available {
		return nil
	}

	employeeID := b.EmployeeID
	if employeeID == "" {
		employeeID = "BOOTSTRAP-" + b.Username
	}
	req := domain.RegisterAdminRequest{
		RegisterRequest: domain.RegisterRequest{
			Username:    b.Username,
			Email:       b.Email,
			Password:    b.Password,
			DisplayName: "Administrator",
		},
		Role:       domain.RoleSuperAdmin,
		Department: "Operations",
		EmployeeID: employeeID,
	}
	result, err := c.AuthSvc.RegisterAdmin(ctx, nil, req, domain.RequestMetadata{UserAgent: "bootstrap"})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	// the bootstrap login is not meant to be used
	if err := c.AuthSvc.Logout(ctx, result.SessionID); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	c.Logger.Info("bootstrap super admin created", zap.Uint("user_id", result.Account.ID), zap.String("username", b.Username))
	return nil
}

// Close closes all connections
func (c *Container) Close() error {
	var errs []error
	if c.Events != nil {
		errs = append(errs, c.Events.Close())
	}
	if c.RedisClient != nil {
		errs = append(errs, c.RedisClient.Close())
	}
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
