package rbac

import "fmt"

// Permission 操作权限
type Permission string

// 项目与成员（仅管理员）
const (
	PermissionCreateProject Permission = "project:create"
	PermissionUpdateProject Permission = "project:update"
	PermissionDeleteProject Permission = "project:delete"
	PermissionAddMember     Permission = "project:member_add"
	PermissionRemoveMember  Permission = "project:member_remove"
	PermissionRegisterUser  Permission = "user:register"
	PermissionCreateTask    Permission = "task:create"
	PermissionReclassify    Permission = "timeline:reclassify"
)

// 任务与子任务（管理员或任务负责人）
const (
	PermissionUpdateTask      Permission = "task:update"
	PermissionDeleteTask      Permission = "task:delete"
	PermissionCreateSubtask   Permission = "subtask:create"
	PermissionUpdateSubtask   Permission = "subtask:update"
	PermissionDeleteSubtask   Permission = "subtask:delete"
	PermissionPostProgression Permission = "progression:post"
)

// 任意已登录用户
const (
	PermissionPostTimeline  Permission = "timeline:post"
	PermissionReplyTimeline Permission = "timeline:reply"
)

// Role 用户角色
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleUser       Role = "user"
)

// Valid 判断角色是否合法
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleUser
}

// 普通用户权限；ownerScoped 中的权限还需要校验 Target.AssignedUserID
var userPermissions = map[Permission]bool{
	PermissionUpdateTask:      true,
	PermissionDeleteTask:      true,
	PermissionCreateSubtask:   true,
	PermissionUpdateSubtask:   true,
	PermissionDeleteSubtask:   true,
	PermissionPostProgression: true,
	PermissionPostTimeline:    true,
	PermissionReplyTimeline:   true,
}

var ownerScoped = map[Permission]bool{
	PermissionUpdateTask:      true,
	PermissionDeleteTask:      true,
	PermissionCreateSubtask:   true,
	PermissionUpdateSubtask:   true,
	PermissionDeleteSubtask:   true,
	PermissionPostProgression: true,
}

// Subject 发起操作的主体
type Subject struct {
	UserID int
	Role   Role
}

// Target 被操作对象；子任务的 Target 是其父任务
type Target struct {
	Kind           string
	ID             int
	AssignedUserID int
}

// Guard 授权检查，无状态
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// HasPermission 仅按角色检查，不考虑归属
func HasPermission(role Role, permission Permission) bool {
	switch role {
	case RoleSuperAdmin:
		return true
	case RoleUser:
		return userPermissions[permission]
	default:
		return false
	}
}

// Check 返回 nil 表示允许；拒绝时返回 *PermissionDeniedError
func (g *Guard) Check(s Subject, permission Permission, target Target) error {
	if s.UserID <= 0 || !s.Role.Valid() {
		return &PermissionDeniedError{UserID: s.UserID, Permission: permission, Reason: "not authenticated"}
	}
	if s.Role == RoleSuperAdmin {
		return nil
	}
	if !HasPermission(s.Role, permission) {
		return &PermissionDeniedError{UserID: s.UserID, Permission: permission, Reason: "requires super admin"}
	}
	if ownerScoped[permission] && target.AssignedUserID != s.UserID {
		return &PermissionDeniedError{
			UserID:     s.UserID,
			Permission: permission,
			Reason:     fmt.Sprintf("not assigned to %s %d", target.Kind, target.ID),
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     int
	Permission Permission
	Reason     string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
