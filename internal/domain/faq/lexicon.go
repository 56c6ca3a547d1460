package faq

// englishStopwords is the standard English stopword list used by NLTK.
var englishStopwords = []string{
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "you're", "you've",
	"you'll", "you'd", "your", "yours", "yourself", "yourselves", "he", "him", "his", "himself",
	"she", "she's", "her", "hers", "herself", "it", "it's", "its", "itself", "they", "them",
	"their", "theirs", "themselves", "what", "which", "who", "whom", "this", "that", "that'll",
	"these", "those", "am", "is", "are", "was", "were", "be", "been", "being", "have", "has",
	"had", "having", "do", "does", "did", "doing", "a", "an", "the", "and", "but", "if", "or",
	"because", "as", "until", "while", "of", "at", "by", "for", "with", "about", "against",
	"between", "into", "through", "during", "before", "after", "above", "below", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again", "further", "then", "once",
	"here", "there", "when", "where", "why", "how", "all", "any", "both", "each", "few", "more",
	"most", "other", "some", "such", "no", "nor", "not", "only", "own", "same", "so", "than",
	"too", "very", "s", "t", "can", "will", "just", "don", "don't", "should", "should've", "now",
	"d", "ll", "m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn", "couldn't", "didn",
	"didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn", "hasn't", "haven", "haven't", "isn",
	"isn't", "ma", "mightn", "mightn't", "mustn", "mustn't", "needn", "needn't", "shan", "shan't",
	"shouldn", "shouldn't", "wasn", "wasn't", "weren", "weren't", "won", "won't", "wouldn",
	"wouldn't",
}

// domainStopwords appear in nearly every campus question and carry no signal.
var domainStopwords = []string{
	"lautech", "university", "school", "student", "students", "question", "answer", "please",
	"like", "get", "want", "know", "tell", "would", "could", "thanks", "thank",
}

// defaultDomainWords are deleted before tokenization.
var defaultDomainWords = []string{"lautech", "university", "school"}

// SynonymRule maps a surface pattern to its canonical token.
type SynonymRule struct {
	Pattern   string `yaml:"pattern" json:"pattern"`
	Canonical string `yaml:"canonical" json:"canonical"`
}

// defaultSynonyms is ordered: the first matching rule wins.
var defaultSynonyms = []SynonymRule{
	{Pattern: "cut off mark", Canonical: "cutoff"},
	{Pattern: "cut off", Canonical: "cutoff"},
	{Pattern: "post utme", Canonical: "utme"},
	{Pattern: "cutoff", Canonical: "cutoff"},
	{Pattern: "mark", Canonical: "mark"},
	{Pattern: "score", Canonical: "score"},
	{Pattern: "fees", Canonical: "fee"},
	{Pattern: "fee", Canonical: "fee"},
	{Pattern: "payment", Canonical: "pay"},
	{Pattern: "pay", Canonical: "pay"},
	{Pattern: "hostel", Canonical: "hostel"},
	{Pattern: "accommodation", Canonical: "hostel"},
	{Pattern: "lodge", Canonical: "hostel"},
	{Pattern: "admission", Canonical: "admission"},
	{Pattern: "admit", Canonical: "admission"},
	{Pattern: "jamb", Canonical: "jamb"},
	{Pattern: "utme", Canonical: "utme"},
	{Pattern: "medicine", Canonical: "medicine"},
	{Pattern: "med", Canonical: "medicine"},
	{Pattern: "engineering", Canonical: "engineering"},
	{Pattern: "engr", Canonical: "engineering"},
	{Pattern: "library", Canonical: "library"},
	{Pattern: "reading", Canonical: "read"},
	{Pattern: "read", Canonical: "read"},
	{Pattern: "cultist", Canonical: "cult"},
	{Pattern: "cult", Canonical: "cult"},
	{Pattern: "security", Canonical: "security"},
	{Pattern: "safe", Canonical: "security"},
	{Pattern: "area", Canonical: "area"},
	{Pattern: "place", Canonical: "area"},
	{Pattern: "location", Canonical: "area"},
}
