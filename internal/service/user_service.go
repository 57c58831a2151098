package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"watchdog/internal/actor"
	"watchdog/internal/model"
	"watchdog/internal/repository"
	"watchdog/internal/util"
	"watchdog/pkg/config"
	"watchdog/pkg/logger"
	"watchdog/pkg/rbac"
)

// ErrAlreadyBootstrapped 已存在用户时拒绝再次初始化管理员
var ErrAlreadyBootstrapped = errors.New("users already exist")

type UserService struct {
	users  repository.UserStore
	guard  *rbac.Guard
	jwt    config.JWTConfig
	logger *zap.Logger
}

func NewUserService(stores repository.Stores, guard *rbac.Guard, jwt config.JWTConfig, logger *zap.Logger) *UserService {
	return &UserService{
		users:  stores.Users,
		guard:  guard,
		jwt:    jwt,
		logger: logger,
	}
}

// Register 只有超级管理员可以创建账号；邮箱不区分大小写且唯一
func (s *UserService) Register(ctx context.Context, a actor.Actor, username, email, password string, role rbac.Role) (id int, err error) {
	ctx, done := track(ctx, opRegister)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionRegisterUser, rbac.Target{Kind: "user"}); err != nil {
		return 0, denied(opRegister, err)
	}
	if role == "" {
		role = rbac.RoleUser
	}
	id, err = s.create(ctx, opRegister, username, email, password, role)
	if err != nil {
		return 0, err
	}

	logger.WithTrace(ctx, s.logger).Info("User registered",
		zap.Int("user_id", id),
		zap.String("role", string(role)),
		zap.Int("actor_id", a.ID),
	)
	return id, nil
}

// Bootstrap 在没有任何用户时创建第一个超级管理员
func (s *UserService) Bootstrap(ctx context.Context, username, email, password string) (id int, err error) {
	ctx, done := track(ctx, opBootstrap)
	defer func() { done(err) }()

	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, dependency(opBootstrap, err)
	}
	if n > 0 {
		return 0, &OpError{Op: opBootstrap, Kind: ErrValidation, Reason: "users already exist", Err: ErrAlreadyBootstrapped}
	}
	return s.create(ctx, opBootstrap, username, email, password, rbac.RoleSuperAdmin)
}

func (s *UserService) create(ctx context.Context, op, username, email, password string, role rbac.Role) (int, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return 0, invalid(op, "username, email and password are required")
	}
	if !role.Valid() {
		return 0, invalid(op, "unknown role %q", role)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return 0, dependency(op, err)
	}
	if existing != nil {
		return 0, invalid(op, "email already registered")
	}

	hash, err := util.HashPassword(password)
	if errors.Is(err, util.ErrPasswordTooLong) {
		return 0, invalid(op, "password must be at most 72 bytes")
	}
	if err != nil {
		return 0, dependency(op, err)
	}

	id, err := s.users.Create(ctx, &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		// 并发注册时由唯一索引兜底
		if isDuplicateKey(err) {
			return 0, invalid(op, "email already registered")
		}
		return 0, dependency(op, err)
	}
	return id, nil
}

// Authenticate 校验邮箱和密码并签发令牌；失败时不区分用户不存在和密码错误
func (s *UserService) Authenticate(ctx context.Context, email, password string) (token string, u *model.User, err error) {
	ctx, done := track(ctx, opAuthenticate)
	defer func() { done(err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, &OpError{Op: opAuthenticate, Kind: ErrUnauthorized, Reason: "missing credentials"}
	}

	u, err = s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, dependency(opAuthenticate, err)
	}
	if u == nil || !util.CheckPassword(password, u.PasswordHash) {
		logger.WithTrace(ctx, s.logger).Info("Login failed", zap.String("email", email))
		return "", nil, &OpError{Op: opAuthenticate, Kind: ErrUnauthorized, Reason: "bad credentials"}
	}

	token, err = util.GenerateJWT(u.ID, u.Role, u.Username, s.jwt.Secret, s.jwt.TTL)
	if err != nil {
		return "", nil, dependency(opAuthenticate, err)
	}
	return token, u, nil
}

// Get 不存在时返回 (nil, nil)
func (s *UserService) Get(ctx context.Context, userID int) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return users, nil
}
