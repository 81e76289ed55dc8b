// Package uploadhttp реализует HTTP API загрузки файлов частями. Основные эндпоинты:
//   - POST /api/upload/init — открывает сессию по имени и размеру файла, отдаёт sessionId.
//   - PUT /api/upload/{sessionID}/chunks/{idx} — принимает часть; X-Total-Chunks обязателен,
//     X-Checksum-Sha256 проверяется, если передан. Повторный PUT заменяет часть.
//   - POST /api/upload/finalize — проверяет полноту частей, собирает файл и отдаёт превью.
//   - GET /api/upload/finalize?sessionId= — превью уже собранного файла.
//   - GET /api/upload/sessions — листинг сессий от самых свежих.
//   - POST /admin/gc — ручной сбор брошенных сессий.
//   - GET /health — готовность хранилища частей и метаданных.
package uploadhttp
