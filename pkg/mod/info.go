package mod

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/beevik/etree"
	"github.com/pelletier/go-toml/v2"
)

// Metadata defaults for mods that do not say otherwise.
const (
	DefaultAuthor         = "UNKNOWN"
	DefaultVersion        = "1.0"
	DefaultMachineVersion = "1.0.0.0"
	DefaultMinVersion     = "0.0.0.0"
)

// Info is the descriptive metadata of a mod.
type Info struct {
	Name              string   `toml:"name"`
	Version           string   `toml:"version"`
	MachineVersion    string   `toml:"machine_version"`
	Author            string   `toml:"author"`
	Description       string   `toml:"description"`
	MinManagerVersion string   `toml:"min_manager_version"`
	Email             string   `toml:"email"`
	Website           string   `toml:"website"`
	Groups            []string `toml:"groups"`
}

func defaultInfo(name string) Info {
	return Info{
		Name:              name,
		Version:           DefaultVersion,
		MachineVersion:    DefaultMachineVersion,
		Author:            DefaultAuthor,
		MinManagerVersion: DefaultMinVersion,
	}
}

// ParseInfoXML reads a fomod/info.xml document over the values already in info.
func ParseInfoXML(data []byte, info *Info) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return errors.Wrap(err, errors.ErrModInvalid, "info.xml is not valid XML")
	}
	root := doc.Root()
	if root == nil {
		return errors.New(errors.ErrModInvalid, "root node was missing from info.xml")
	}
	if root.Tag != "fomod" {
		return errors.Newf(errors.ErrModInvalid, "unexpected root node %q in info.xml", root.Tag)
	}

	for _, el := range root.ChildElements() {
		text := strings.TrimSpace(el.Text())
		switch el.Tag {
		case "Name":
			info.Name = text
		case "Version":
			info.Version = text
			if mv := el.SelectAttrValue("MachineVersion", ""); mv != "" {
				v, err := NormalizeVersion(mv)
				if err != nil {
					return err
				}
				info.MachineVersion = v
			}
		case "Author":
			info.Author = text
		case "Description":
			info.Description = text
		case "MinFommVersion":
			v, err := NormalizeVersion(text)
			if err != nil {
				return err
			}
			info.MinManagerVersion = v
		case "Email":
			info.Email = text
		case "Website":
			info.Website = text
		case "Groups":
			groups := []string{}
			for _, g := range el.SelectElements("element") {
				groups = append(groups, strings.TrimSpace(g.Text()))
			}
			info.Groups = groups
		}
	}
	return nil
}

// ParseInfoTOML reads a fomod/info.toml document over the values already in info.
func ParseInfoTOML(data []byte, info *Info) error {
	var parsed Info
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return errors.Wrap(err, errors.ErrModInvalid, "info.toml is not valid")
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&info.Name, parsed.Name)
	set(&info.Version, parsed.Version)
	set(&info.Author, parsed.Author)
	set(&info.Description, parsed.Description)
	set(&info.Email, parsed.Email)
	set(&info.Website, parsed.Website)
	if parsed.MachineVersion != "" {
		v, err := NormalizeVersion(parsed.MachineVersion)
		if err != nil {
			return err
		}
		info.MachineVersion = v
	}
	if parsed.MinManagerVersion != "" {
		v, err := NormalizeVersion(parsed.MinManagerVersion)
		if err != nil {
			return err
		}
		info.MinManagerVersion = v
	}
	if parsed.Groups != nil {
		info.Groups = parsed.Groups
	}
	return nil
}

// NormalizeVersion validates a dotted machine version of two to four
// numeric parts and pads it to four.
func NormalizeVersion(v string) (string, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) < 2 || len(parts) > 4 {
		return "", errors.Newf(errors.ErrModInvalid, "invalid version %q", v)
	}
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err != nil || n < 0 {
			return "", errors.Newf(errors.ErrModInvalid, "invalid version %q", v)
		}
	}
	for len(parts) < 4 {
		parts = append(parts, "0")
	}
	return strings.Join(parts, "."), nil
}

// CompareVersions orders two normalized versions.
func CompareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		x, _ := strconv.Atoi(pa[i])
		y, _ := strconv.Atoi(pb[i])
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return len(pa) - len(pb)
}
