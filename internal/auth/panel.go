package auth

// Panel names one of the three mutually exclusive forms on the auth page.
type Panel string

// Panels, named after the ?form= values that select them.
const (
	PanelSignIn Panel = "signin"
	PanelSignUp Panel = "signup"
	PanelForgot Panel = "forgot"
)

// Element ids of the links that switch panels.
const (
	TriggerToSignUp     = "to-signup"
	TriggerToSignIn     = "to-signin"
	TriggerToForgot     = "to-forgot"
	TriggerBackToSignIn = "back-to-signin"
)

// InitialPanel picks the panel shown on load. Only "signup" selects the sign-up
// form; every other value, including none, shows sign-in.
func InitialPanel(form string) Panel {
	if form == string(PanelSignUp) {
		return PanelSignUp
	}
	return PanelSignIn
}

// Visibility has exactly one field set.
type Visibility struct {
	SignIn bool
	SignUp bool
	Forgot bool
}

// Visibility reports which panel elements are shown when p is active.
func (p Panel) Visibility() Visibility {
	switch p {
	case PanelSignUp:
		return Visibility{SignUp: true}
	case PanelForgot:
		return Visibility{Forgot: true}
	default:
		return Visibility{SignIn: true}
	}
}

// Transition returns the panel a trigger switches to. The result does not depend
// on the panel currently shown.
func Transition(trigger string) (Panel, bool) {
	switch trigger {
	case TriggerToSignUp:
		return PanelSignUp, true
	case TriggerToSignIn, TriggerBackToSignIn:
		return PanelSignIn, true
	case TriggerToForgot:
		return PanelForgot, true
	}
	return "", false
}
