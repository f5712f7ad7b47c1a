// 签发本地联调用的 JWT
//
// 生产环境的令牌由认证服务签发，本服务只做校验。
// 用法: go run scripts/issue_token.go -user 7 -role teacher

package main

import (
	"coder_assessment_backend/internal/config"
	"coder_assessment_backend/internal/model"
	"coder_assessment_backend/internal/util"
	"flag"
	"fmt"
	"log"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	userID := flag.Uint("user", 1, "用户ID")
	role := flag.String("role", string(model.Student), "角色: student / teacher / admin")
	email := flag.String("email", "", "邮箱")
	flag.Parse()

	switch model.UserRole(*role) {
	case model.Student, model.Teacher, model.Admin:
	default:
		log.Fatalf("未知角色: %s", *role)
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	token, err := util.GenerateJWT(*userID, model.UserRole(*role), *email, cfg.JWT.Secret, cfg.JWT.ExpireTime)
	if err != nil {
		log.Fatalf("签发失败: %v", err)
	}
	fmt.Println(token)
}
