// Package config handles configuration loading for lore-console.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  sso:
//	    client_id: "${LORE_SSO_CLIENT_ID}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Backend API:
//
//	api:
//	  base_url: "https://kb.example.com/api"
//	  timeout: "30s"
//
// Authentication:
//
//	auth:
//	  local_enabled: true        # username/password against the backend
//	  sso:
//	    enabled: true            # enterprise identity provider (redirect flow)
//	    client_id: "${LORE_SSO_CLIENT_ID}"
//	    auth_url: "https://login.example.com/oauth2/authorize"
//	    token_url: "https://login.example.com/oauth2/token"
//	    logout_url: "https://login.example.com/oauth2/logout"
//	    redirect_url: "https://kb.example.com/auth/callback"
//	    scopes: ["openid", "profile", "email"]
//
// Session storage:
//
//	storage:
//	  path: "~/.local/state/lore-console/session.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - api.base_url is present
//   - at least one authentication method is enabled
//   - SSO endpoints are complete when SSO is enabled
//   - duration format validity
package config
