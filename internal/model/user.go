package model

// UserRole 由认证方签发在 JWT 中，本服务只做校验
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
