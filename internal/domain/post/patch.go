package post

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ErrEmptyPatch は更新項目が 1 つもない場合に返される。
var ErrEmptyPatch = errors.New("post: patch has no fields")

// Patch は主催者による部分更新。nil の項目は変更しない。
type Patch struct {
	Title            *string
	Deadline         *time.Time
	OrganizerEmail   *string
	OrganizerName    *string
	VolunteersNeeded *int
	Description      *string
	Category         *string
	Location         *string
	Thumbnail        *string
	// Attributes は追加項目のうち上書きするもの。含まれないキーは残る。
	Attributes map[string]any
}

// Change はストアへ書き込む 1 フィールド分の更新。Attribute なら追加項目。
type Change struct {
	Field     string
	Value     any
	Attribute bool
}

// Validate は指定された項目だけを検証する。
func (pt Patch) Validate() error {
	if pt.IsEmpty() {
		return ErrEmptyPatch
	}
	if pt.Title != nil && strings.TrimSpace(*pt.Title) == "" {
		return ErrEmptyTitle
	}
	if pt.Deadline != nil && pt.Deadline.IsZero() {
		return ErrMissingDeadline
	}
	if pt.VolunteersNeeded != nil && *pt.VolunteersNeeded < 0 {
		return ErrNegativeCapacity
	}
	return nil
}

// IsEmpty は更新項目が無いかどうかを返す。
func (pt Patch) IsEmpty() bool {
	return len(pt.Changes()) == 0
}

// Changes は $set 相当の更新一覧をフィールド名付きで返す。
func (pt Patch) Changes() []Change {
	var changes []Change
	addString := func(field string, v *string) {
		if v != nil {
			changes = append(changes, Change{Field: field, Value: *v})
		}
	}
	addString(FieldTitle, pt.Title)
	if pt.Deadline != nil {
		changes = append(changes, Change{Field: FieldDeadline, Value: pt.Deadline.UTC()})
	}
	addString(FieldOrganizerEmail, pt.OrganizerEmail)
	addString(FieldOrganizerName, pt.OrganizerName)
	if pt.VolunteersNeeded != nil {
		changes = append(changes, Change{Field: FieldVolunteersNeeded, Value: *pt.VolunteersNeeded})
	}
	addString(FieldDescription, pt.Description)
	addString(FieldCategory, pt.Category)
	addString(FieldLocation, pt.Location)
	addString(FieldThumbnail, pt.Thumbnail)

	keys := make([]string, 0, len(pt.Attributes))
	for k := range pt.Attributes {
		if IsAttributeKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		changes = append(changes, Change{Field: k, Value: pt.Attributes[k], Attribute: true})
	}
	return changes
}

// Apply はパッチを反映し、値が実際に変わったかどうかを返す。
func (p *Post) Apply(pt Patch) bool {
	f := &p.fields
	changed := false
	setString := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setString(&f.Title, pt.Title)
	if pt.Deadline != nil && !f.Deadline.Equal(*pt.Deadline) {
		f.Deadline = pt.Deadline.UTC()
		changed = true
	}
	setString(&f.OrganizerEmail, pt.OrganizerEmail)
	setString(&f.OrganizerName, pt.OrganizerName)
	if pt.VolunteersNeeded != nil && f.VolunteersNeeded != *pt.VolunteersNeeded {
		f.VolunteersNeeded = *pt.VolunteersNeeded
		changed = true
	}
	setString(&f.Description, pt.Description)
	setString(&f.Category, pt.Category)
	setString(&f.Location, pt.Location)
	setString(&f.Thumbnail, pt.Thumbnail)

	for k, v := range pt.Attributes {
		if !IsAttributeKey(k) {
			continue
		}
		if old, ok := f.Attributes[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		if f.Attributes == nil {
			f.Attributes = make(map[string]any)
		}
		f.Attributes[k] = v
		changed = true
	}
	return changed
}
