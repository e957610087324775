package normalize_test

import (
	"reflect"
	"testing"

	"jobmate/ingestion-service/internal/normalize"
)

// ── NormalizeTitle ─────────────────────────────────────────────────────────

func TestNormalizeTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Sr. Software Engineer II", "engineer"},
		{"Senior Software Engineer", "engineer"},
		{"Sr Engineer", "engineer"},
		{"Front-End Developer", "frontend developer"},
		{"Backend Engineer 3", "backend engineer"},
		{"Mid Level Product Mgr", "product manager"},
		{"UI/UX Designer", "uiux designer"},
		{"C++ Developer", "cpp developer"},
		{"Staff SWE, L5", "engineer"},
		{"Engineer Level 2", "engineer"},
		{"  DATA   scientist ", "data scientist"},
		{"", ""},
	}
	for _, c := range cases {
		if got := normalize.NormalizeTitle(c.in); got != c.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeTitle_SeniorityVariantsCollide(t *testing.T) {
	base := normalize.NormalizeTitle("Software Engineer")
	for _, v := range []string{"Senior Software Engineer", "Jr. Software Engineer", "Software Engineer II", "Lead Software Engineer"} {
		if got := normalize.NormalizeTitle(v); got != base {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", v, got, base)
		}
	}
}

// ── NormalizeCompany ───────────────────────────────────────────────────────

func TestNormalizeCompany(t *testing.T) {
	cases := []struct{ in, want string }{
		{"The Acme Group, Inc.", "acme"},
		{"Acme Inc", "acme"},
		{"ACME", "acme"},
		{"Foo S.A.", "foo"},
		{"Initech LLC", "initech"},
		{"Johnson & Johnson", "johnson and johnson"},
		{"Labs Inc", "labs"},
		{"Tech", "tech"},
		{"The", "the"},
		{"", ""},
	}
	for _, c := range cases {
		if got := normalize.NormalizeCompany(c.in); got != c.want {
			t.Errorf("NormalizeCompany(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// ── NormalizeLocation ──────────────────────────────────────────────────────

func TestNormalizeLocation(t *testing.T) {
	cases := []struct{ in, want string }{
		{"New York, NY", "new york"},
		{"NY", "new york"},
		{"Austin, TX", "austin, texas"},
		{"Austin TX", "austin texas"},
		{"Remote", "remote"},
		{"Work from Home", "remote"},
		{"Anywhere", "remote"},
		{"Based in Berlin", "berlin"},
		{"San Francisco (Remote)", "san francisco, remote"},
		{"London | Remote", "london, remote"},
		{"Remote - US", "remote, us"},
		{"   ", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := normalize.NormalizeLocation(c.in); got != c.want {
			t.Errorf("NormalizeLocation(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// ── idempotence ────────────────────────────────────────────────────────────

var corpus = []string{
	"",
	" ",
	"Sr. Software Engineer II",
	"Senior Front End Developer (Remote)",
	"Entry Level Data Analyst 1",
	"Principal SDE - Level 5",
	"The Acme Group, Inc.",
	"Société Générale S.A.",
	"Based in Austin, TX / Remote",
	"located at: Washington, DC",
	"Remote first, Anywhere",
	"fully remote • EU",
	"C# .NET Engineer",
	"Product Management Lead",
	"UX-UI Designer III",
	"Some   Weird...Input!!  ,,, with, NY, NY",
}

func TestNormalizers_Idempotent(t *testing.T) {
	fns := map[string]func(string) string{
		"title":    normalize.NormalizeTitle,
		"company":  normalize.NormalizeCompany,
		"location": normalize.NormalizeLocation,
	}
	for name, f := range fns {
		for _, in := range corpus {
			once := f(in)
			if twice := f(once); twice != once {
				t.Errorf("%s: f(%q) = %q but f(f(x)) = %q", name, in, once, twice)
			}
		}
	}
}

// ── ExperienceLevel / IsRemote / ExtractTags ───────────────────────────────

func TestExperienceLevel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Senior Engineer", "senior"},
		{"Sr. Backend Dev", "senior"},
		{"Principal Engineer", "principal"},
		{"Engineer II", "mid"},
		{"Junior Analyst", "junior"},
		{"Software Intern", "intern"},
		{"Engineer", ""},
	}
	for _, c := range cases {
		if got := normalize.ExperienceLevel(c.in); got != c.want {
			t.Errorf("ExperienceLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsRemote(t *testing.T) {
	if !normalize.IsRemote("Remote - US") {
		t.Error("IsRemote(\"Remote - US\") should be true")
	}
	if !normalize.IsRemote("Work from home") {
		t.Error("IsRemote(\"Work from home\") should be true")
	}
	if normalize.IsRemote("New York") {
		t.Error("IsRemote(\"New York\") should be false")
	}
	if normalize.IsRemote("") {
		t.Error("IsRemote(\"\") should be false")
	}
}

func TestExtractTags(t *testing.T) {
	got := normalize.ExtractTags("Senior Go engineer", "Kubernetes, PostgreSQL and a bit of React.js")
	want := []string{"go", "kubernetes", "postgresql", "react"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractTags = %v, want %v", got, want)
	}
}

func TestExtractTags_GoVerbIsNotGolang(t *testing.T) {
	got := normalize.ExtractTags("Ready to go the extra mile")
	if len(got) != 0 {
		t.Errorf("ExtractTags = %v, want none", got)
	}
}
