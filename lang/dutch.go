package lang

import (
	"strings"
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/dutch"
)

// Coarse Dutch tags, following the CGN top-level categories.
const (
	TagNoun        = "N"
	TagAdjective   = "Adj"
	TagNumeral     = "Num"
	TagVerb        = "V"
	TagArticle     = "Art"
	TagPronoun     = "Pron"
	TagPreposition = "Prep"
	TagConjunction = "Conj"
	TagAdverb      = "Adv"
	TagInterject   = "Int"
)

// Dutch segments and tokenizes with prose, tags with a closed-class lexicon
// plus suffix rules, and stems with the Snowball Dutch stemmer.
type Dutch struct {
	lexicon map[string]string
}

// NewDutch builds the tagging lexicon.
func NewDutch() (*Dutch, error) {
	lex := make(map[string]string, 512)
	for _, class := range dutchClosedClass {
		for _, w := range strings.Fields(class.words) {
			if _, seen := lex[w]; !seen {
				lex[w] = class.tag
			}
		}
	}
	return &Dutch{lexicon: lex}, nil
}

func (d *Dutch) Code() string { return "nl" }

func (d *Dutch) SplitParagraph(text string) []string {
	return splitSentences(text)
}

func (d *Dutch) TokenizeSentence(sentence string) []string {
	return CleanTokens(tokenize(sentence))
}

// TagTokens assigns one coarse tag per token. Closed-class words come from
// the lexicon; open-class words are told apart by suffix and by the word
// before them.
func (d *Dutch) TagTokens(tokens []string) []string {
	tags := make([]string, len(tokens))
	for i, tok := range tokens {
		var prev string
		if i > 0 {
			prev = tokens[i-1]
		}
		tags[i] = d.tag(tok, prev)
	}
	return tags
}

func (d *Dutch) tag(tok, prev string) string {
	if tag, ok := d.lexicon[tok]; ok {
		return tag
	}
	if isNumeric(tok) {
		return TagNumeral
	}
	if prev == "te" && strings.HasSuffix(tok, "en") {
		return TagVerb
	}
	if d.lexicon[prev] == TagPronoun && isPersonal(prev) {
		return TagVerb
	}
	for _, suf := range dutchAdjectiveSuffixes {
		if strings.HasSuffix(tok, suf) && len(tok) > len(suf)+1 {
			return TagAdjective
		}
	}
	return TagNoun
}

func (d *Dutch) StemToken(token string) string {
	env := snowballstem.NewEnv(token)
	dutch.Stem(env)
	return env.Current()
}

func (d *Dutch) NodeKey(text, pos string) string {
	return tagPrefix(pos, 1) + strings.ToLower(d.StemToken(Scrub(text)))
}

func (d *Dutch) IsNoun(pos string) bool {
	return strings.HasPrefix(pos, "N") && !strings.HasPrefix(pos, TagNumeral)
}

func (d *Dutch) IsAdjective(pos string) bool { return strings.HasPrefix(pos, TagAdjective) }
func (d *Dutch) IsRelevant(pos string) bool  { return d.IsNoun(pos) || d.IsAdjective(pos) }

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return true
}

func isPersonal(w string) bool {
	switch w {
	case "ik", "jij", "je", "hij", "zij", "ze", "wij", "we", "jullie", "u":
		return true
	}
	return false
}

// Suffixes are checked in order; longer ones first where they overlap.
var dutchAdjectiveSuffixes = []string{
	"achtige", "achtig",
	"lijke", "lijk",
	"ische", "isch",
	"bare", "baar",
	"loze", "loos",
	"zame", "zaam",
	"ieve", "ief",
	"ige", "ig",
	"ele", "eel",
}

// dutchClosedClass lists closed-class words. A word listed under more than
// one class keeps the first.
var dutchClosedClass = []struct {
	tag   string
	words string
}{
	{TagArticle, "de het een 't"},
	{TagPronoun, `ik jij je hij zij ze wij we jullie u men mij me jou hem haar ons hen hun
		mijn jouw uw onze deze dit die dat wie wat welke welk iemand niemand
		iets niets alles allen elk elke ieder iedere zichzelf zich er`},
	{TagPreposition, `in op aan van voor met door over bij naar uit tot tegen tussen onder
		boven achter naast zonder binnen buiten tijdens sinds vanaf om per via langs rond
		volgens behalve ondanks wegens te`},
	{TagConjunction, `en of maar want dus dat omdat als toen terwijl hoewel zodat
		indien tenzij noch zowel doch`},
	{TagAdverb, `niet ook nog al wel zeer heel erg hier daar nu dan toen altijd nooit
		vaak soms misschien alleen weer toch even echter eens reeds pas straks vandaag
		gisteren morgen zo hoe waarom waar wanneer meer minst meest veel weinig`},
	{TagVerb, `is zijn was waren ben bent heeft hebben had hadden heb hebt wordt worden
		werd werden word kan kunnen kon konden zal zullen zou zouden moet moeten moest
		mag mogen mocht wil willen wilde gaat gaan ging gingen komt komen kwam kwamen
		doet doen deed deden maakt maken maakte staat staan stond ligt liggen lag zegt
		zeggen zei krijgt krijgen kreeg blijft blijven bleef loopt lopen liep rent rennen
		springt springen sprong`},
	{TagAdjective, `groot grote klein kleine nieuw nieuwe oud oude goed goede slecht
		slechte snel snelle lui luie bruin bruine mooi mooie lang lange kort korte hoog
		hoge laag lage jong jonge zwart zwarte wit witte rood rode blauw blauwe groen
		groene geel gele warm warme koud koude`},
	{TagInterject, "ja nee hé o oh ach"},
	{TagNumeral, `twee drie vier vijf zes zeven acht negen tien elf twaalf honderd
		duizend eerste tweede derde`},
}
