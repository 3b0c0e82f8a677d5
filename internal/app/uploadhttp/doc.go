// Package uploadhttp реализует Upload API — HTTP-интерфейс сервиса возобновляемой
// загрузки файлов по частям. Основные эндпоинты:
//   - POST /uploads — открывает новую сессию загрузки по totalSize/chunkSize.
//   - PUT /uploads/{sessionID}/chunks/{idx} — принимает часть, проверяет длину и дайджест.
//   - GET /uploads/{sessionID} — отдаёт состояние сессии и счётчики принятых частей.
//   - DELETE /uploads/{sessionID} — отменяет сессию и удаляет накопленные части.
//   - GET /health — health-check для балансировщика.
package uploadhttp
