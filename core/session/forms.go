package session

import "github.com/learnearn/hub/core"

type SignIn struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

func (si *SignIn) Clean() {
	si.Email = core.CleanString(si.Email, true /* lower */)
	si.Password = core.CleanString(si.Password)
}

type SignUp struct {
	Name     string `form:"name" json:"name" validate:"notblank,max=100"`
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=6,pwdtoosim=Name Email"`
	Ref      string `form:"ref" json:"ref,omitempty" validate:"omitempty,max=64"`
}

func (su *SignUp) Clean() {
	su.Name = core.CleanString(su.Name)
	su.Email = core.CleanString(su.Email, true /* lower */)
	su.Ref = core.CleanString(su.Ref)
}
