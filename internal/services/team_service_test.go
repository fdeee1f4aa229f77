package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/models"
	apperrors "github.com/crewdeck/crewdeck/pkg/errors"
)

func newTeamService(t *testing.T, env *testEnv) *TeamService {
	t.Helper()

	svc, err := NewTeamService(env.db)
	require.NoError(t, err)
	return svc
}

func TestTeamServiceCreate(t *testing.T) {
	env := newTestEnv(t)
	svc := newTeamService(t, env)
	ctx := context.Background()

	acme := env.createCompany(t, "Acme")
	admin := env.createUser(t, userSpec{name: "Admin", email: "admin@acme.test", companyID: &acme.ID, isAdmin: true})

	team, err := svc.Create(ctx, actorFor(admin), CreateTeamInput{Name: " Platform ", Description: "infra"})
	require.NoError(t, err)
	require.Equal(t, "Platform", team.Name)
	require.NotZero(t, team.ID)

	_, err = svc.Create(ctx, actorFor(admin), CreateTeamInput{Name: "Platform"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)

	// Names are unique system-wide, so another admin hits the same conflict.
	globex := env.createCompany(t, "Globex")
	other := env.createUser(t, userSpec{name: "Other", email: "admin@globex.test", companyID: &globex.ID, isAdmin: true})
	_, err = svc.Create(ctx, actorFor(other), CreateTeamInput{Name: "Platform"})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)
}

func TestTeamServiceCreateRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	svc := newTeamService(t, env)
	ctx := context.Background()

	acme := env.createCompany(t, "Acme")
	member := env.createUser(t, userSpec{name: "Member", email: "member@acme.test", companyID: &acme.ID})

	_, err := svc.Create(ctx, actorFor(member), CreateTeamInput{Name: "Rogue"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestTeamServiceCrossCompanyMembership(t *testing.T) {
	env := newTestEnv(t)
	svc := newTeamService(t, env)
	ctx := context.Background()

	acme := env.createCompany(t, "Acme")
	globex := env.createCompany(t, "Globex")
	super := env.createUser(t, userSpec{name: "Root", email: "root@crewdeck.test", isSuperAdmin: true})
	acmeUser := env.createUser(t, userSpec{name: "A", email: "a@acme.test", companyID: &acme.ID})
	globexUser := env.createUser(t, userSpec{name: "B", email: "b@globex.test", companyID: &globex.ID})
	floating := env.createUser(t, userSpec{name: "C", email: "c@crewdeck.test"})

	team, err := svc.Create(ctx, actorFor(super), CreateTeamInput{Name: "Everyone"})
	require.NoError(t, err)

	// Members may come from any company, or from none.
	require.NoError(t, svc.AddMember(ctx, actorFor(super), team.ID, acmeUser.ID, ""))
	require.NoError(t, svc.AddMember(ctx, actorFor(super), team.ID, globexUser.ID, ""))
	require.NoError(t, svc.AddMember(ctx, actorFor(super), team.ID, floating.ID, models.TeamRoleLead))

	members, err := svc.Members(ctx, actorFor(super), team.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)

	// A company admin sees and manages the same team.
	acmeAdmin := env.createUser(t, userSpec{name: "Admin", email: "admin@acme.test", companyID: &acme.ID, isAdmin: true})
	loaded, err := svc.GetByID(ctx, actorFor(acmeAdmin), team.ID)
	require.NoError(t, err)
	require.Equal(t, "Everyone", loaded.Name)
	require.NoError(t, svc.RemoveMember(ctx, actorFor(acmeAdmin), team.ID, globexUser.ID))
}

func TestTeamServiceListIsGlobal(t *testing.T) {
	env := newTestEnv(t)
	svc := newTeamService(t, env)
	ctx := context.Background()

	acme := env.createCompany(t, "Acme")
	member := env.createUser(t, userSpec{name: "Member", email: "member@acme.test", companyID: &acme.ID})

	require.NoError(t, env.db.Create(&models.Team{Name: "Sales"}).Error)
	require.NoError(t, env.db.Create(&models.Team{Name: "Platform"}).Error)

	teams, err := svc.List(ctx, actorFor(member))
	require.NoError(t, err)
	require.Len(t, teams, 2)
	require.Equal(t, "Platform", teams[0].Name)
	require.Equal(t, "Sales", teams[1].Name)
}

func TestTeamServiceMembershipLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := newTeamService(t, env)
	ctx := context.Background()

	acme := env.createCompany(t, "Acme")
	admin := env.createUser(t, userSpec{name: "Admin", email: "admin@acme.test", companyID: &acme.ID, isAdmin: true})
	member := env.createUser(t, userSpec{name: "Member", email: "member@acme.test", companyID: &acme.ID})

	team, err := svc.Create(ctx, actorFor(admin), CreateTeamInput{Name: "Platform"})
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, actorFor(admin), team.ID, member.ID, ""))

	// Duplicate memberships are rejected.
	err = svc.AddMember(ctx, actorFor(admin), team.ID, member.ID, models.TeamRoleLead)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)

	err = svc.AddMember(ctx, actorFor(admin), team.ID, "missing-user", "")
	require.ErrorIs(t, err, ErrUserNotFound)

	err = svc.AddMember(ctx, actorFor(admin), team.ID, admin.ID, "owner")
	var badRole *apperrors.AppError
	require.ErrorAs(t, err, &badRole)
	require.Equal(t, "BAD_REQUEST", badRole.Code)

	require.NoError(t, svc.AddMember(ctx, actorFor(admin), team.ID, admin.ID, models.TeamRoleLead))

	members, err := svc.Members(ctx, actorFor(admin), team.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	roles := map[string]string{}
	for _, m := range members {
		roles[m.User.ID] = m.Role
	}
	require.Equal(t, models.TeamRoleMember, roles[member.ID])
	require.Equal(t, models.TeamRoleLead, roles[admin.ID])

	require.NoError(t, svc.RemoveMember(ctx, actorFor(admin), team.ID, member.ID))
	err = svc.RemoveMember(ctx, actorFor(admin), team.ID, member.ID)
	require.ErrorIs(t, err, ErrNotTeamMember)
}

func TestTeamServiceDeleteOnlyWhenEmpty(t *testing.T) {
	env := newTestEnv(t)
	svc := newTeamService(t, env)
	ctx := context.Background()

	acme := env.createCompany(t, "Acme")
	admin := env.createUser(t, userSpec{name: "Admin", email: "admin@acme.test", companyID: &acme.ID, isAdmin: true})
	member := env.createUser(t, userSpec{name: "Member", email: "member@acme.test", companyID: &acme.ID})

	team, err := svc.Create(ctx, actorFor(admin), CreateTeamInput{Name: "Platform"})
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(ctx, actorFor(admin), team.ID, member.ID, ""))

	err = svc.Delete(ctx, actorFor(admin), team.ID)
	require.ErrorIs(t, err, ErrTeamNotEmpty)

	require.NoError(t, svc.RemoveMember(ctx, actorFor(admin), team.ID, member.ID))
	require.NoError(t, svc.Delete(ctx, actorFor(admin), team.ID))

	_, err = svc.GetByID(ctx, actorFor(admin), team.ID)
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestTeamServiceUpdate(t *testing.T) {
	env := newTestEnv(t)
	svc := newTeamService(t, env)
	ctx := context.Background()

	acme := env.createCompany(t, "Acme")
	admin := env.createUser(t, userSpec{name: "Admin", email: "admin@acme.test", companyID: &acme.ID, isAdmin: true})
	member := env.createUser(t, userSpec{name: "Member", email: "member@acme.test", companyID: &acme.ID})

	team, err := svc.Create(ctx, actorFor(admin), CreateTeamInput{Name: "Platform"})
	require.NoError(t, err)

	name := "Core Platform"
	desc := "owns the runtime"
	updated, err := svc.Update(ctx, actorFor(admin), team.ID, UpdateTeamInput{Name: &name, Description: &desc})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.Equal(t, desc, updated.Description)

	// Regular members can see the team but not rename it.
	_, err = svc.Update(ctx, actorFor(member), team.ID, UpdateTeamInput{Name: &name})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}
