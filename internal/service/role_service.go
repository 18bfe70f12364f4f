package service

import (
	"context"
	"fmt"

	"licitacao/internal/apperror"
	"licitacao/internal/model"
	"licitacao/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type UpdateRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// Permission codes checked by the HTTP layer.
const (
	PermProcessesRead    = "processes.read"
	PermProcessesWrite   = "processes.write"
	PermProcessesDelete  = "processes.delete"
	PermProcessesRestore = "processes.restore"
	PermCatalogWrite     = "catalog.write"
	PermUsersRead        = "users.read"
	PermUsersWrite       = "users.write"
	PermAuditRead        = "audit.read"
	PermDashboardRead    = "dashboard.read"
	PermRolesManage      = "roles.manage"
	PermReviewRead       = "review.read"
)

var defaultPermissions = []model.Permission{
	{Code: PermDashboardRead, Name: "Ver painel e estatísticas", Group: "dashboard"},
	{Code: PermProcessesRead, Name: "Ver processos", Group: "processes"},
	{Code: PermProcessesWrite, Name: "Criar e tramitar processos", Group: "processes"},
	{Code: PermProcessesDelete, Name: "Mover processos para a lixeira", Group: "processes"},
	{Code: PermProcessesRestore, Name: "Restaurar processos da lixeira", Group: "processes"},
	{Code: PermCatalogWrite, Name: "Gerenciar setores, modalidades e fontes", Group: "catalog"},
	{Code: PermUsersRead, Name: "Ver usuários", Group: "users"},
	{Code: PermUsersWrite, Name: "Gerenciar usuários", Group: "users"},
	{Code: PermAuditRead, Name: "Ver histórico de atividades", Group: "audit"},
	{Code: PermRolesManage, Name: "Gerenciar permissões", Group: "roles"},
	{Code: PermReviewRead, Name: "Revisar etapas rejeitadas", Group: "review"},
}

var defaultRoles = []struct {
	Name        string
	Description string
	PermCodes   []string
}{
	{
		Name:        model.RoleAdmin,
		Description: "Administrador: acesso total",
		PermCodes: []string{
			PermDashboardRead, PermProcessesRead, PermProcessesWrite,
			PermProcessesDelete, PermProcessesRestore, PermCatalogWrite,
			PermUsersRead, PermUsersWrite, PermAuditRead, PermRolesManage, PermReviewRead,
		},
	},
	{
		Name:        model.RoleManager,
		Description: "Gestor: tramita processos e acompanha o setor",
		PermCodes: []string{
			PermDashboardRead, PermProcessesRead, PermProcessesWrite,
			PermProcessesDelete, PermProcessesRestore, PermUsersRead, PermAuditRead,
		},
	},
	{
		Name:        model.RoleStaff,
		Description: "Servidor: tramita processos do próprio setor",
		PermCodes: []string{
			PermDashboardRead, PermProcessesRead, PermProcessesWrite, PermProcessesRestore,
		},
	},
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id uuid.UUID) (*RoleResponse, error)
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID uuid.UUID, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo      repository.RoleRepository
	tx        repository.TransactionManager
	onChanged func()
}

// NewRoleService builds the role service. onChanged runs after a role's
// permissions are replaced so cached lookups can be dropped.
func NewRoleService(repo repository.RoleRepository, tx repository.TransactionManager, onChanged func()) RoleService {
	if onChanged == nil {
		onChanged = func() {}
	}
	return &roleService{repo: repo, tx: tx, onChanged: onChanged}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "failed to fetch roles")
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id uuid.UUID) (*RoleResponse, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "role", id)
	}
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "failed to fetch permissions")
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID uuid.UUID, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	permIDs := make([]uuid.UUID, 0, len(req.PermissionIDs))
	for _, pid := range req.PermissionIDs {
		parsed, err := uuid.Parse(pid)
		if err != nil {
			return nil, apperror.Validation("permission_ids", "invalid permission id '%s'", pid)
		}
		permIDs = append(permIDs, parsed)
	}

	if err := s.repo.ReplacePermissions(ctx, roleID, permIDs); err != nil {
		return nil, lookupErr(err, "role", roleID)
	}
	s.onChanged()

	return s.GetRole(ctx, roleID)
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.repo.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load permissions for role '%s'", roleName)
	}
	return codes, nil
}

// SeedDefaultRolesAndPermissions creates the default permissions and roles.
// Existing system roles get their default permission set re-applied.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		idByCode := make(map[string]uuid.UUID, len(defaultPermissions))
		for _, def := range defaultPermissions {
			p := def
			if err := s.repo.FindOrCreatePermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
			idByCode[p.Code] = p.ID
		}

		for _, def := range defaultRoles {
			role, err := s.repo.FindByName(txCtx, def.Name)
			if err != nil {
				role = &model.Role{Name: def.Name, Description: def.Description, IsSystem: true}
				if err := s.repo.Create(txCtx, role); err != nil {
					return fmt.Errorf("failed to seed role '%s': %w", def.Name, err)
				}
			}

			ids := make([]uuid.UUID, 0, len(def.PermCodes))
			for _, code := range def.PermCodes {
				if id, ok := idByCode[code]; ok {
					ids = append(ids, id)
				}
			}
			if err := s.repo.ReplacePermissions(txCtx, role.ID, ids); err != nil {
				return fmt.Errorf("failed to assign permissions to role '%s': %w", def.Name, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
