package generator

// Draft is a generated blog post before segmentation. Body is plain
// markdown text the user may still edit; Title is informational once
// the draft exists.
type Draft struct {
	Title string
	Body  string
}
