package api

import (
	"fmt"
	"html/template"
	"io/fs"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/repository"
	"github.com/mr1hm/school-finance/internal/webui"
)

const (
	pageLogin          = "login"
	pageChangePassword = "change_password"
	pageDashboard      = "dashboard"
	pageStudents       = "students/list"
	pageStudentForm    = "students/form"
	pageFees           = "fees/list"
	pageFeeForm        = "fees/form"
	pagePayments       = "payments/list"
	pagePaymentForm    = "payments/form"
	pageReceipt        = "payments/receipt"
	pageReports        = "reports/index"
	pageNotFound       = "errors/404"
	pageServerError    = "errors/500"
)

var pages = []string{
	pageLogin, pageChangePassword, pageDashboard,
	pageStudents, pageStudentForm,
	pageFees, pageFeeForm,
	pagePayments, pagePaymentForm, pageReceipt,
	pageReports, pageNotFound, pageServerError,
}

// views renders each page inside the shared layout. Every page gets its own
// clone of the layout so their "content" blocks do not collide.
type views struct {
	pages map[string]*template.Template
}

func newViews(files fs.FS, funcs template.FuncMap) (*views, error) {
	base, err := template.New("layout").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/pagination.html")
	if err != nil {
		return nil, err
	}
	v := &views{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(files, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// Instance implements render.HTMLRender.
func (v *views) Instance(name string, data any) render.Render {
	t, ok := v.pages[name]
	if !ok {
		t = v.pages[pageServerError]
	}
	return render.HTML{Template: t, Name: "layout", Data: data}
}

func (h *Handler) templateFuncs() template.FuncMap {
	currency := h.settings.School.Currency
	return template.FuncMap{
		"currency": func(m models.Money) string {
			return m.Format(currency)
		},
		"date": func(d models.Date) string {
			return d.String()
		},
		"can": func(u *models.User, p string) bool {
			return u.HasPermission(models.Permission(p))
		},
		"alertClass": func(category string) string {
			return webui.ParseCategory(category).Class()
		},
	}
}

type pager struct {
	Page    int
	Pages   int
	Total   int
	PrevURL template.URL
	NextURL template.URL
}

func newPager[T any](c *gin.Context, p repository.Page[T]) pager {
	pg := pager{Page: p.Page, Pages: p.Pages(), Total: p.Total}
	if p.HasPrev() {
		pg.PrevURL = pageURL(c, p.PrevNum())
	}
	if p.HasNext() {
		pg.NextURL = pageURL(c, p.NextNum())
	}
	return pg
}

// pageURL keeps the current filters and swaps the page number.
func pageURL(c *gin.Context, page int) template.URL {
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(page))
	return template.URL(c.Request.URL.Path + "?" + q.Encode())
}
