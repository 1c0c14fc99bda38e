package metadata

// NotFound is the placeholder stored in any field whose rule found no match
const NotFound = "Not found"

// Column names in report order
const (
	ColumnFilename        = "Filename"
	ColumnTitle           = "Title"
	ColumnAuthors         = "Authors"
	ColumnDOI             = "DOI"
	ColumnPublisher       = "Publisher"
	ColumnVolume          = "Volume"
	ColumnIssue           = "Issue"
	ColumnPages           = "Pages"
	ColumnYear            = "Year"
	ColumnPublicationDate = "Publication Date"
)

// Columns lists the record fields in the order they appear in reports
var Columns = []string{
	ColumnFilename,
	ColumnTitle,
	ColumnAuthors,
	ColumnDOI,
	ColumnPublisher,
	ColumnVolume,
	ColumnIssue,
	ColumnPages,
	ColumnYear,
	ColumnPublicationDate,
}

// Record holds the bibliographic fields extracted from one PDF
type Record struct {
	Filename        string `json:"filename"`
	Title           string `json:"title"`
	Authors         string `json:"authors"`
	DOI             string `json:"doi"`
	Publisher       string `json:"publisher"`
	Volume          string `json:"volume"`
	Issue           string `json:"issue"`
	Pages           string `json:"pages"`
	Year            string `json:"year"`
	PublicationDate string `json:"publication_date"`
}

// Values returns the field values in Columns order
func (r Record) Values() []string {
	return []string{
		r.Filename,
		r.Title,
		r.Authors,
		r.DOI,
		r.Publisher,
		r.Volume,
		r.Issue,
		r.Pages,
		r.Year,
		r.PublicationDate,
	}
}

// Missing returns the names of the fields that hold the NotFound placeholder
func (r Record) Missing() []string {
	var missing []string
	for i, v := range r.Values() {
		if v == NotFound {
			missing = append(missing, Columns[i])
		}
	}
	return missing
}
