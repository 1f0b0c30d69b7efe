package pagination

import (
	"regexp"
	"strings"
	"unicode"
)

// category is what a control does when clicked.
type category int

const (
	categoryNone category = iota
	categoryNext
	categoryPrev
	categoryLoadMore
	categoryLoadEarlier
)

func (c category) String() string {
	switch c {
	case categoryNext:
		return "next"
	case categoryPrev:
		return "prev"
	case categoryLoadMore:
		return "load-more"
	case categoryLoadEarlier:
		return "load-earlier"
	}
	return "none"
}

// Phrases are matched exactly against normalized control text.
var lexicon = map[category][]string{
	categoryNext: {
		"next", "next page", "next results", "older posts",
		"siguiente", "página siguiente", "suivant", "page suivante",
		"weiter", "nächste", "nächste seite", "próximo", "próxima", "próxima página",
		"successivo", "avanti", "pagina successiva", "volgende", "volgende pagina",
		"далее", "следующая", "вперед", "вперёд", "次へ", "次のページ", "次",
		"下一页", "下一頁", "下页", "다음", "다음 페이지",
	},
	categoryPrev: {
		"prev", "previous", "previous page", "newer posts",
		"anterior", "página anterior", "précédent", "page précédente",
		"zurück", "vorherige", "vorherige seite", "precedente", "indietro",
		"vorige", "назад", "предыдущая", "前へ", "前のページ", "上一页", "上一頁", "이전",
	},
	categoryLoadMore: {
		"load more", "show more", "see more", "view more", "load more results",
		"show more results", "more",
		"cargar más", "ver más", "mostrar más", "charger plus", "voir plus", "afficher plus",
		"mehr laden", "mehr anzeigen", "carregar mais", "ver mais", "mostrar mais",
		"carica altri", "mostra altri", "carica di più", "meer laden", "toon meer",
		"загрузить еще", "загрузить ещё", "показать еще", "показать ещё",
		"もっと見る", "さらに表示", "加载更多", "查看更多", "載入更多", "더 보기", "더보기",
	},
	categoryLoadEarlier: {
		"load earlier", "load older", "load previous", "show older", "show earlier",
		"load earlier messages", "previous messages", "older messages",
		"cargar anteriores", "charger les précédents", "ältere laden", "carregar anteriores",
		"загрузить предыдущие", "加载更早", "이전 메시지",
	},
}

var (
	forwardGlyphs  = "›»→>≫⟩❯▶▸⇨⟶"
	backwardGlyphs = "‹«←<≪⟨❮◀◂⇦⟵"

	vocabulary     = regexp.MustCompile(`(?i)pagination|paginate|pager|paging|page-?nav|page-?numbers|load-?more|show-?more`)
	infiniteMarker = regexp.MustCompile(`(?i)infinite|sentinel|endless|scroll-?trigger|load-?trigger|waypoint`)
	loadingMarker  = regexp.MustCompile(`(?i)loading|spinner|loader|skeleton`)
	toTopMarker    = regexp.MustCompile(`(?i)back-?to-?top|scroll-?to-?top|to-?top|go-?top`)
	activeMarker   = regexp.MustCompile(`(?i)\b(?:active|current|selected)\b`)
)

var phraseIndex = func() map[string]category {
	idx := make(map[string]category)
	for cat, phrases := range lexicon {
		for _, p := range phrases {
			idx[p] = cat
		}
	}
	return idx
}()

// normalize lowercases s, collapses whitespace and trims punctuation.
func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && !strings.ContainsRune(forwardGlyphs+backwardGlyphs, r)
	})
}

// stripGlyphs removes arrow glyphs and the space around them.
func stripGlyphs(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(forwardGlyphs+backwardGlyphs, r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// glyphOnly returns the direction of text made only of arrow glyphs.
func glyphOnly(s string) category {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || len([]rune(s)) > 3 {
		return categoryNone
	}
	switch {
	case strings.Trim(s, forwardGlyphs) == "":
		return categoryNext
	case strings.Trim(s, backwardGlyphs) == "":
		return categoryPrev
	}
	return categoryNone
}

// matchPhrase classifies text by the lexicon. exact reports a phrase hit
// rather than a glyph hit.
func matchPhrase(text string) (cat category, exact bool) {
	t := normalize(text)
	if t == "" {
		return categoryNone, false
	}
	if c, ok := phraseIndex[t]; ok {
		return c, true
	}
	if c, ok := phraseIndex[stripGlyphs(t)]; ok {
		return c, true
	}
	return glyphOnly(t), false
}
