package events

const KindViewChanged Kind = "view.changed"

type ViewChanged struct {
	Base
	View string `json:"view"`
}

func NewViewChanged(view string) ViewChanged {
	return ViewChanged{Base: NewBase(KindViewChanged), View: view}
}
