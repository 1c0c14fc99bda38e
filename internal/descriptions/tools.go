package descriptions

// Tool descriptions shown to MCP clients, with examples and use cases

const (
	DOIExtractFileDescription = `Extract bibliographic metadata from a single research PDF.

**When to use:** You have one paper and need its DOI, title, authors, publisher, volume, issue, pages, year or publication date.

**What you get:** One line per field. Any field the document does not state is reported as "Not found".

**Examples:**
• Cite a paper: "Get the DOI and publisher of papers/smith-2020.pdf"
• Check a download: "Which volume and issue is journal-article.pdf from?"

**Notes:** Title and Authors are taken from the first two lines of page one, so they are only as good as the PDF layout. Scanned PDFs without a text layer yield "Not found" for every field.`

	DOIExtractArchiveDescription = `Build an Excel report from a ZIP archive of research PDFs.

**When to use:** You have a batch of papers zipped together and want one spreadsheet row per paper.

**What you get:** An .xlsx file with the columns Filename, Title, Authors, DOI, Publisher, Volume, Issue, Pages, Year and Publication Date, sorted by path inside the archive. PDFs that cannot be read are listed on a separate Errors sheet.

**Examples:**
• Literature review: "Extract metadata from reading-list.zip"
• Custom destination: "Process uploads/batch-7.zip and write the report to reports/batch-7.xlsx"

**Notes:** The report defaults to metadata_output.xlsx next to the archive. Archives whose entries escape the extraction directory are rejected as a whole.`

	DOIServerInfoDescription = `Get server information, the directory tools are confined to and the available tools.

**When to use:** First call in a session, or when a path is rejected as outside the configured directory.`
)
