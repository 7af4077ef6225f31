// Package e2e provides end-to-end tests that crawl a generated site over HTTP and search it.
package e2e

import (
	"fmt"
	"net/http"
	"strings"
)

// Page is one HTML page of the generated site.
type Page struct {
	Path  string
	Title string
	Body  string
	Links []string
}

// QueryTestCase defines a query and the page paths that must appear in its results.
type QueryTestCase struct {
	Query         string
	ExpectedPaths []string
	Description   string
}

// Corpus holds the pages of a generated site and query test cases for it.
type Corpus struct {
	Pages        []Page
	TestCases    []QueryTestCase
	TotalPages   int
	TotalQueries int
}

type topic struct {
	slug     string
	title    string
	sentence string
	query    string
}

var topics = []topic{
	{"leopard", "Леопард", "Пятнистый леопард охотится ночью в саванне.", "леопард"},
	{"volcano", "Вулканы", "Извержение вулкана выбрасывает пепел и раскалённую лаву.", "извержение вулкана"},
	{"chess", "Шахматы", "Гроссмейстер разыграл защиту и выиграл партию.", "гроссмейстер"},
	{"bees", "Пчеловодство", "Пасечник собирает душистый мёд из ульев.", "пасечник"},
	{"astronomy", "Астрономия", "Телескоп обсерватории наблюдает далёкую галактику.", "телескоп"},
	{"cooking", "Кулинария", "Повар готовит наваристый борщ со свёклой.", "борщ"},
	{"sailing", "Мореплавание", "Капитан ведёт фрегат через узкий пролив.", "фрегат"},
	{"architecture", "Архитектура", "Зодчий построил белый собор с золотыми куполами.", "собор"},
	{"music", "Музыка", "Скрипач исполнил сонату в филармонии.", "скрипач"},
	{"garden", "Садоводство", "Садовник подрезает старые яблони ранней весной.", "садовник"},
	{"skiing", "Лыжи", "Лыжник стремительно спускается по склону горы.", "лыжник"},
	{"chemistry", "Химия", "Лаборант смешивает реактивы в стеклянной колбе.", "колба"},
}

const filler = "Эта статья входит в энциклопедию сайта. Материалы обновляются редакцией."

// BuildCorpus returns an index page, one page per topic and a set of archive
// pages. Each topic page carries a signature sentence so queries can assert the
// correct page is returned.
func BuildCorpus() *Corpus {
	var pages []Page
	index := Page{Path: "/", Title: "Энциклопедия", Body: "<p>" + filler + "</p>"}
	for i, tp := range topics {
		path := "/topics/" + tp.slug
		index.Links = append(index.Links, path)
		next := "/topics/" + topics[(i+1)%len(topics)].slug
		pages = append(pages, Page{
			Path:  path,
			Title: tp.title,
			Body:  fmt.Sprintf("<h1>%s</h1><p>%s</p><p>%s</p>", tp.title, tp.sentence, filler),
			Links: []string{"/", next, path + "#comments", "/files/" + tp.slug + ".pdf", "https://external.example/" + tp.slug},
		})
	}
	for i := 0; i < 8; i++ {
		path := fmt.Sprintf("/archive/%d", i)
		index.Links = append(index.Links, path)
		pages = append(pages, Page{
			Path:  path,
			Title: fmt.Sprintf("Архив %d", i),
			Body:  "<p>" + filler + "</p>",
			Links: []string{"/", "/archive/?page=" + fmt.Sprint(i+1)},
		})
	}
	pages = append([]Page{index}, pages...)

	var cases []QueryTestCase
	for _, tp := range topics {
		cases = append(cases, QueryTestCase{
			Query:         tp.query,
			ExpectedPaths: []string{"/topics/" + tp.slug},
			Description:   tp.title,
		})
	}
	return &Corpus{
		Pages:        pages,
		TestCases:    cases,
		TotalPages:   len(pages),
		TotalQueries: len(cases),
	}
}

// HTML renders p as a complete HTML document.
func (p Page) HTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>")
	b.WriteString(p.Title)
	b.WriteString("</title><script>var tracker = 'скрипт';</script></head><body>")
	b.WriteString(p.Body)
	b.WriteString("<nav>")
	for _, l := range p.Links {
		fmt.Fprintf(&b, `<a href="%s">ссылка</a>`, l)
	}
	b.WriteString("</nav></body></html>")
	return b.String()
}

// Handler serves the corpus. Unknown paths answer 404.
func (c *Corpus) Handler() http.Handler {
	byPath := make(map[string]Page, len(c.Pages))
	for _, p := range c.Pages {
		byPath[p.Path] = p
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(p.HTML()))
	})
}
