// Package config provides configuration management for the stancegate pipeline.
//
// # Overview
//
// The config package uses Viper to load configuration from YAML files and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.stancegate/config.yaml and is created with
// defaults on first use. Partial files are completed from Default().
//
// # Environment Variables
//
// All configuration values can be overridden using environment variables
// with the STANCEGATE_ prefix. Nested fields are separated by underscores.
//
// Examples:
//   - STANCEGATE_LLM_DEFAULT_PROVIDER=openai
//   - STANCEGATE_LLM_PROVIDERS_ANTHROPIC_API_KEY=sk-ant-...
//   - STANCEGATE_INTENT_MODE=heuristic
//   - STANCEGATE_LOGGING_LEVEL=debug
//
// API keys are better kept in the environment (or a .env file loaded by the CLI)
// than in the config file.
//
// # Configuration Sections
//
//   - LLM: classification oracle providers and the concurrency bound
//   - Logging: level, format and optional file sink
//   - Intent / Shield: classifier mode and per-call oracle timeout
//   - Personality: banned phrases, self-reference cap, action score threshold
//   - Pipeline: regeneration budget
//
// Config instances are not thread-safe; build one at startup and treat it as read-only.
package config
