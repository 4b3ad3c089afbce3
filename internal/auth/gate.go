package auth

// Decision решение гейта для защищенного экрана
type Decision string

const (
	// DecisionRender сессия подтверждена, роль подходит
	DecisionRender Decision = "render"
	// DecisionRenderGrace есть сохраненный токен, профиль еще загружается;
	// показываем контент, чтобы не мигать экраном входа
	DecisionRenderGrace Decision = "render_grace"
	// DecisionRedirectLogin окончательно не аутентифицирован
	DecisionRedirectLogin Decision = "redirect_login"
	// DecisionRedirectHome роль пользователя не подходит этому экрану
	DecisionRedirectHome Decision = "redirect_home"
	// DecisionWait восстановление еще идет, решения пока нет
	DecisionWait Decision = "wait"
)

// Маршруты по ролям
const LoginRoute = "/login"

var homeRoutes = map[string]string{
	"user":   "/",
	"driver": "/driver",
	"admin":  "/admin",
}

// HomeRoute возвращает стартовый маршрут для роли
func HomeRoute(role string) string {
	if route, ok := homeRoutes[role]; ok {
		return route
	}
	return "/"
}

// Gate ролевой гейт одного защищенного экрана
type Gate struct {
	session      *Session
	allowedRoles map[string]bool
}

// NewGate создает гейт для набора допустимых ролей
func NewGate(session *Session, allowedRoles ...string) *Gate {
	allowed := make(map[string]bool, len(allowedRoles))
	for _, role := range allowedRoles {
		allowed[role] = true
	}
	return &Gate{session: session, allowedRoles: allowed}
}

// Evaluate вычисляет решение гейта по текущему состоянию сессии.
// Редирект на вход возможен только когда сессия окончательно разрешилась
// как анонимная: нет ни токена, ни идущей загрузки.
func (g *Gate) Evaluate() (Decision, string) {
	user := g.session.User()

	switch {
	case g.session.IsAuthenticated() && user != nil && g.allowedRoles[user.Role]:
		return DecisionRender, ""
	case g.session.IsAuthenticated() && user != nil:
		return DecisionRedirectHome, HomeRoute(user.Role)
	case g.session.HasStoredToken() && user == nil:
		// Переходное состояние bootstrap: показываем контент без мигания
		return DecisionRenderGrace, ""
	case !g.session.IsLoading() && !g.session.IsAuthenticated() && !g.session.HasStoredToken():
		return DecisionRedirectLogin, LoginRoute
	default:
		return DecisionWait, ""
	}
}
