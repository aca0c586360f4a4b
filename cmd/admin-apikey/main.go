package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"skycast.backend/internal/config"
	"skycast.backend/internal/domain/entities"
	"skycast.backend/internal/infrastructure/repositories"
	"skycast.backend/internal/usecases"
)

var openAdminAPIKeyDB = func(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{PrepareStmt: false})
}

var openAdminSQLDB = func(db *gorm.DB) (io.Closer, error) {
	return db.DB()
}

type adminAPIKeyRuntime interface {
	IssueApiKey(ctx context.Context, input *entities.CreateApiKeyInput) (*entities.CreateApiKeyResponse, error)
}

type adminAPIKeyDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(cfg *config.Config) (adminAPIKeyRuntime, io.Closer, error)
	now     func() time.Time
	out     io.Writer
}

type adminAPIKeyRuntimeImpl struct {
	apiKeyCase *usecases.ApiKeyUsecase
}

func (r adminAPIKeyRuntimeImpl) IssueApiKey(ctx context.Context, input *entities.CreateApiKeyInput) (*entities.CreateApiKeyResponse, error) {
	// System-issued: no owning dashboard user.
	return r.apiKeyCase.IssueApiKey(ctx, nil, input)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultAdminAPIKeyDeps() adminAPIKeyDeps {
	return adminAPIKeyDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(cfg *config.Config) (adminAPIKeyRuntime, io.Closer, error) {
			dsn := cfg.Database.URL()
			db, err := openAdminAPIKeyDB(dsn)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect db: %w", err)
			}

			sqlDB, err := openAdminSQLDB(db)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init sql db: %w", err)
			}

			apiKeyRepo := repositories.NewApiKeyRepository(db)
			apiKeyUsecase := usecases.NewApiKeyUsecase(apiKeyRepo, cfg.Security.BcryptCost)
			return adminAPIKeyRuntimeImpl{
				apiKeyCase: apiKeyUsecase,
			}, sqlDB, nil
		},
		now: time.Now,
		out: os.Stdout,
	}
}

func resolveAPIKeyName(input string, now time.Time) string {
	if input != "" {
		return input
	}
	return fmt.Sprintf("operator-%s", now.Format("20060102-150405"))
}

func parseRole(input string) (entities.KeyRole, error) {
	role := entities.KeyRole(input)
	if !role.Valid() {
		return "", fmt.Errorf("invalid --role %q (want root, admin, or user)", input)
	}
	return role, nil
}

func runAdminAPIKey(args []string, deps adminAPIKeyDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.prepare == nil {
		def := defaultAdminAPIKeyDeps()
		deps.prepare = def.prepare
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	fs := flag.NewFlagSet("admin-apikey", flag.ContinueOnError)
	nameFlag := fs.String("name", "", "api key display name (optional)")
	roleFlag := fs.String("role", string(entities.KeyRoleRoot), "key role: root, admin, or user")
	expiresFlag := fs.Duration("expires-in", 0, "key lifetime, e.g. 720h (0 = never expires)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	role, err := parseRole(*roleFlag)
	if err != nil {
		return err
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := deps.loadCfg()
	runtime, closer, err := deps.prepare(cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	input := &entities.CreateApiKeyInput{
		Name: resolveAPIKeyName(*nameFlag, deps.now()),
		Role: role,
	}
	if *expiresFlag > 0 {
		expiresAt := deps.now().Add(*expiresFlag)
		input.ExpiresAt = &expiresAt
	}

	resp, err := runtime.IssueApiKey(context.Background(), input)
	if err != nil {
		return fmt.Errorf("failed creating api key: %w", err)
	}

	_, _ = fmt.Fprintln(deps.out, "Created API key and stored in DB")
	_, _ = fmt.Fprintf(deps.out, "api_key_id=%s\n", resp.ID.String())
	_, _ = fmt.Fprintf(deps.out, "name=%s\n", resp.Name)
	_, _ = fmt.Fprintf(deps.out, "role=%s\n", resp.Role)
	if resp.ExpiresAt.Valid {
		_, _ = fmt.Fprintf(deps.out, "expires_at=%s\n", resp.ExpiresAt.Time.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(deps.out, "API_KEY=%s\n", resp.ApiKey)
	_, _ = fmt.Fprintln(deps.out, "The plaintext key above is shown once and cannot be recovered.")
	return nil
}

func main() {
	if err := runAdminAPIKey(os.Args[1:], defaultAdminAPIKeyDeps()); err != nil {
		log.Fatal(err)
	}
}
