package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const MimeJSON = "application/json"

// 分页
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)
