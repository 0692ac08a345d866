// Package logger provee logging estructurado con zap para todo el servicio.
//
// Uso:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info", ServiceName: "backvault"})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("oauth.exchange"))
//	log.Info("token exchanged", logger.Provider("dropbox"))
//
// Regla de oro: NUNCA loguear material de tokens (ni plaintext ni ciphertext).
// Para correlacionar sesiones usar logger.SessionRef, que sólo expone un hash.
package logger
