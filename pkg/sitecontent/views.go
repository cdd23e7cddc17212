package sitecontent

import "sort"

// View identifiers. A view is rendered from a page of the same name.
const (
	ViewHome       = "home"
	ViewAbout      = "about"
	ViewAcademics  = "academics"
	ViewFacilities = "facilities"
	ViewActivities = "activities"
	ViewAdmissions = "admissions"
	ViewContact    = "contact"
	ViewGallery    = "gallery"
	ViewTransport  = "transport"
)

// SharedPage holds sections rendered on every page.
const SharedPage = "shared"

// DefaultViews are the views invalidated when invalidation is not narrowed
// to the touched sections.
var DefaultViews = []string{ViewHome, ViewAbout, ViewAcademics, ViewFacilities}

// PageSections lists, per page, the document sections it renders.
var PageSections = map[string][]string{
	ViewHome:       {"hero", "welcome", "facilities", "courses", "grades", "activities"},
	ViewAbout:      {"about"},
	ViewAcademics:  {"academics", "courses", "grades", "calendar", "methodologies"},
	ViewFacilities: {"facilities", "additionalFacilities"},
	ViewActivities: {"activities"},
	ViewAdmissions: {"admissions", "process", "requirements", "fees", "application_form"},
	ViewContact:    {"contact"},
	ViewGallery:    {"gallery"},
	ViewTransport:  {"transport"},
	SharedPage:     {"header", "footer"},
}

// AllViews returns every known view, sorted.
func AllViews() []string {
	views := make([]string, 0, len(PageSections))
	for page := range PageSections {
		if page == SharedPage {
			continue
		}
		views = append(views, page)
	}
	sort.Strings(views)
	return views
}

// ViewsForSections returns the views rendered from any of the given sections.
// A shared or unknown section stales every view.
func ViewsForSections(sections []string) []string {
	set := make(map[string]struct{})
	for _, section := range sections {
		views := viewsForSection(section)
		if views == nil {
			return AllViews()
		}
		for _, v := range views {
			set[v] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func viewsForSection(section string) []string {
	var views []string
	for page, sections := range PageSections {
		for _, s := range sections {
			if s != section {
				continue
			}
			if page == SharedPage {
				return nil
			}
			views = append(views, page)
		}
	}
	return views
}

// PageRenders reports whether page shows section, so that a section written
// through the page can be read back through it.
func PageRenders(page, section string) bool {
	for _, s := range PageSections[page] {
		if s == section {
			return true
		}
	}
	return false
}

// PageView projects the sections of page out of doc. Sections the document
// does not have are left out. Unknown pages yield ErrPageNotFound.
func PageView(doc Document, page string) (Document, error) {
	sections, ok := PageSections[page]
	if !ok {
		return nil, ErrPageNotFound
	}
	view := make(Document, len(sections))
	for _, s := range sections {
		if v, ok := doc[s]; ok {
			view[s] = cloneValue(v)
		}
	}
	return view, nil
}
