// Package uploadproto описывает протокол HTTP-взаимодействия с сервисом загрузки.
package uploadproto

// Параметры REST-протокола загрузки частей.
const (
	UploadsPath     = "%s/uploads"
	SessionPath     = "%s/uploads/%s"
	ChunkPathFormat = "%s/uploads/%s/chunks/%d"

	// HeaderChecksum несёт клиентский дайджест части в формате "algo:hex".
	HeaderChecksum = "X-Checksum"
	HeaderOwnerID  = "X-Owner-Id"
	HeaderSize     = "X-Size"
)
