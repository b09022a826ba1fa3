package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/leadfuel/pixelbridge/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			// Clear any existing environment variables
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.APITimeoutMS, convey.ShouldEqual, 5_000)
				convey.So(cfg.MaxRetries, convey.ShouldEqual, 3)
				convey.So(cfg.RetryDelayMS, convey.ShouldEqual, 1_000)
				convey.So(cfg.DedupeWindowHours, convey.ShouldEqual, 24)
				convey.So(cfg.SessionTTLHours, convey.ShouldEqual, 24)
				convey.So(cfg.ShardCount, convey.ShouldEqual, 16)
				convey.So(cfg.Currency, convey.ShouldEqual, "BRL")
				convey.So(cfg.HashingEnabled, convey.ShouldBeTrue)
				convey.So(cfg.PixelID, convey.ShouldBeEmpty)
				convey.So(cfg.AccessToken, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PIXELBRIDGE_ADDR", ":8080")
			_ = os.Setenv("PIXELBRIDGE_PIXEL_ID", "1234567890")
			_ = os.Setenv("PIXELBRIDGE_ACCESS_TOKEN", "EAAB-token")
			_ = os.Setenv("PIXELBRIDGE_MAX_RETRIES", "5")
			_ = os.Setenv("PIXELBRIDGE_CURRENCY", "USD")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PixelID, convey.ShouldEqual, "1234567890")
				convey.So(cfg.AccessToken, convey.ShouldEqual, "EAAB-token")
				convey.So(cfg.MaxRetries, convey.ShouldEqual, 5)
				convey.So(cfg.Currency, convey.ShouldEqual, "USD")
				convey.So(cfg.DedupeWindowHours, convey.ShouldEqual, 24) // untouched default
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
pixel_id: "987654321"
dedupe_window_hours: 48
sweep_interval_minutes: 5
hashing_enabled: false
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PIXELBRIDGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.PixelID, convey.ShouldEqual, "987654321")
				convey.So(cfg.DedupeWindowHours, convey.ShouldEqual, 48)
				convey.So(cfg.SweepIntervalMinutes, convey.ShouldEqual, 5)
				convey.So(cfg.HashingEnabled, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
pixel_id: "987654321"
max_retries: 2
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PIXELBRIDGE_CONFIG", tmpFile)
			_ = os.Setenv("PIXELBRIDGE_ADDR", ":8080")    // This should override the file
			_ = os.Setenv("PIXELBRIDGE_MAX_RETRIES", "4") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")         // Overridden by env
				convey.So(cfg.PixelID, convey.ShouldEqual, "987654321") // From file
				convey.So(cfg.MaxRetries, convey.ShouldEqual, 4)        // Overridden by env
			})
		})

		convey.Convey("When loading config with a custom event name map from YAML", func() {
			yamlContent := `
event_name_map:
  signup_completed: CompleteRegistration
  trial_started: StartTrial
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PIXELBRIDGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the mapping table should be populated", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.EventNameMap, convey.ShouldHaveLength, 2)
				convey.So(cfg.EventNameMap["signup_completed"], convey.ShouldEqual, "CompleteRegistration")
				convey.So(cfg.EventNameMap["trial_started"], convey.ShouldEqual, "StartTrial")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PIXELBRIDGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PIXELBRIDGE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("PIXELBRIDGE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with zero retries", func() {
			_ = os.Setenv("PIXELBRIDGE_MAX_RETRIES", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "max_retries")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PIXELBRIDGE_MAX_RETRIES", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			yamlContent := `
addr: ":9090"
currency: "EUR"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PIXELBRIDGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")      // From file
				convey.So(cfg.Currency, convey.ShouldEqual, "EUR")    // From file
				convey.So(cfg.MaxRetries, convey.ShouldEqual, 3)      // From defaults
				convey.So(cfg.SessionTTLHours, convey.ShouldEqual, 24) // From defaults
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"PIXELBRIDGE_CONFIG",
		"PIXELBRIDGE_ADDR",
		"PIXELBRIDGE_PIXEL_ID",
		"PIXELBRIDGE_ACCESS_TOKEN",
		"PIXELBRIDGE_MAX_RETRIES",
		"PIXELBRIDGE_CURRENCY",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "pixelbridge-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
