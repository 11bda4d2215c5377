package collections

import (
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/utils/rfctime"
)

type DataProduct struct {
	Product    string `json:"product"`
	Version    string `json:"version"`
	SearchView string `json:"search_view,omitempty"`
}

type Matcher struct {
	Matcher    string         `json:"matcher"`
	Parameters map[string]any `json:"parameters"`
}

// Body is a request body to save a collection version.
type Body struct {
	Name          string        `json:"name"`
	VerSrc        string        `json:"ver_src"`
	Desc          string        `json:"desc,omitempty"`
	DataProducts  []DataProduct `json:"data_products"`
	Matchers      []Matcher     `json:"matchers"`
	DefaultSelect string        `json:"default_select,omitempty"`
}

// Domain converts the request into domain.CollectionBody. It does not validate.
func (b Body) Domain() domain.CollectionBody {
	ret := domain.CollectionBody{
		Name:          b.Name,
		VerSrc:        b.VerSrc,
		Desc:          b.Desc,
		DefaultSelect: b.DefaultSelect,
	}
	for _, dp := range b.DataProducts {
		ret.DataProducts = append(ret.DataProducts, domain.DataProductSpec(dp))
	}
	for _, m := range b.Matchers {
		ret.Matchers = append(ret.Matchers, domain.MatcherSpec(m))
	}
	return ret
}

type Collection struct {
	ID     string `json:"id"`
	VerTag string `json:"ver_tag"`
	VerNum int    `json:"ver_num"`
	Body

	Created      rfctime.RFC3339  `json:"date_create"`
	UserCreate   string           `json:"user_create"`
	Activated    *rfctime.RFC3339 `json:"date_active,omitempty"`
	UserActivate string           `json:"user_active,omitempty"`
}

func Compose(c domain.Collection) Collection {
	body := Body{
		Name:          c.Name,
		VerSrc:        c.VerSrc,
		Desc:          c.Desc,
		DefaultSelect: c.DefaultSelect,
		DataProducts:  []DataProduct{},
		Matchers:      []Matcher{},
	}
	for _, dp := range c.DataProducts {
		body.DataProducts = append(body.DataProducts, DataProduct(dp))
	}
	for _, m := range c.Matchers {
		if m.Parameters == nil {
			m.Parameters = map[string]any{}
		}
		body.Matchers = append(body.Matchers, Matcher(m))
	}

	ret := Collection{
		ID:         c.ID,
		VerTag:     c.VerTag,
		VerNum:     c.VerNum,
		Body:       body,
		Created:    rfctime.RFC3339(c.Created),
		UserCreate: c.UserCreate,
	}
	if c.Activated != nil {
		at := rfctime.RFC3339(*c.Activated)
		ret.Activated = &at
		ret.UserActivate = c.UserActivate
	}
	return ret
}

// List is a response listing collections.
type List struct {
	Data []Collection `json:"data"`
}

func ComposeList(cs []domain.Collection) List {
	ret := List{Data: make([]Collection, 0, len(cs))}
	for _, c := range cs {
		ret.Data = append(ret.Data, Compose(c))
	}
	return ret
}
