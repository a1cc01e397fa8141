package installlog

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/arthur-debert/modman/pkg/errors"
	"github.com/arthur-debert/modman/pkg/mergemodule"
	"github.com/arthur-debert/modman/pkg/paths"
	"github.com/beevik/etree"
)

// FileVersion is written to the fileVersion attribute of saved logs.
const FileVersion = "1.0.0"

// legacy fomm bookkeeping mod that never owns resources
const legacyManagerKey = "fomm"

// Marshal renders the ledger as an XML document.
func (l *Log) Marshal() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("installLog")
	root.CreateAttr("fileVersion", FileVersion)

	modList := root.CreateElement("modList")
	for _, m := range l.mods {
		el := modList.CreateElement("mod")
		el.CreateAttr("name", m.Name)
		el.CreateAttr("key", m.Key)
		if m.Version != "" || m.MachineVersion != "" {
			v := el.CreateElement("version")
			if m.MachineVersion != "" {
				v.CreateAttr("machineVersion", m.MachineVersion)
			}
			v.SetText(m.Version)
		}
	}

	dataFiles := root.CreateElement("dataFiles")
	for _, p := range l.Files() {
		el := dataFiles.CreateElement("file")
		el.CreateAttr("path", p)
		owners := el.CreateElement("installingMods")
		for _, e := range l.files[p] {
			o := ownerElement(owners, e.Owner)
			if e.Value != "" {
				o.CreateAttr("hash", e.Value)
			}
		}
	}

	iniEdits := root.CreateElement("iniEdits")
	for _, k := range l.Settings() {
		el := iniEdits.CreateElement("ini")
		el.CreateAttr("file", k.File)
		el.CreateAttr("section", k.Section)
		el.CreateAttr("key", k.Key)
		owners := el.CreateElement("installingMods")
		for _, e := range l.settings[k] {
			ownerElement(owners, e.Owner).SetText(e.Value)
		}
	}

	sdpEdits := root.CreateElement("sdpEdits")
	for _, k := range l.Shaders() {
		el := sdpEdits.CreateElement("edit")
		el.CreateAttr("key", k.String())
		owners := el.CreateElement("installingMods")
		for _, e := range l.shaders[k] {
			ownerElement(owners, e.Owner).SetText(hex.EncodeToString(e.Value))
		}
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to render install log")
	}
	return out, nil
}

func ownerElement(parent *etree.Element, owner OwnerID) *etree.Element {
	if owner.IsOriginal() {
		return parent.CreateElement("original")
	}
	el := parent.CreateElement("mod")
	el.CreateAttr("key", owner.Key())
	return el
}

// Unmarshal parses an install log document. Logs written by fomm are
// upgraded: random mod keys become base-name keys, the ORIGINAL_VALUES
// pseudo-mod becomes Original, and sdp edits stored as sdp elements or
// under gameSpecificEdits are read as shader edits.
func Unmarshal(data []byte) (*Log, error) {
	l := New()
	if len(strings.TrimSpace(string(data))) == 0 {
		return l, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrLedgerFormat, "install log is not valid XML")
	}
	root := doc.SelectElement("installLog")
	if root == nil {
		return nil, errors.New(errors.ErrLedgerFormat, "install log has no installLog element")
	}

	p := &parser{
		log:    l,
		keys:   map[string]OwnerID{},
		legacy: root.SelectAttrValue("fileVersion", "") != FileVersion,
	}
	if err := p.modList(root.SelectElement("modList")); err != nil {
		return nil, err
	}
	if err := p.dataFiles(root.SelectElement("dataFiles")); err != nil {
		return nil, err
	}
	if err := p.iniEdits(root.SelectElement("iniEdits")); err != nil {
		return nil, err
	}
	for _, section := range []string{"sdpEdits", "gameSpecificEdits"} {
		if err := p.shaderEdits(root.SelectElement(section)); err != nil {
			return nil, err
		}
	}
	return l, nil
}

type parser struct {
	log *Log
	keys   map[string]OwnerID // key as stored -> owner
	legacy bool
}

func (p *parser) modList(el *etree.Element) error {
	if el == nil {
		return nil
	}
	for _, m := range el.SelectElements("mod") {
		name := m.SelectAttrValue("name", "")
		stored := m.SelectAttrValue("key", "")
		if name == "" {
			return errors.New(errors.ErrLedgerFormat, "mod entry without a name")
		}
		if name == OriginalValuesKey {
			p.keys[stored] = Original
			continue
		}
		if strings.EqualFold(name, legacyManagerKey) {
			continue
		}

		key := ModKey(stored)
		if p.legacy || key == "" {
			// fomm keyed mods by a random token and named them by base name
			key = ModKey(name)
		}
		rec := ModRecord{Key: key, Name: name}
		if v := m.SelectElement("version"); v != nil {
			rec.Version = strings.TrimSpace(v.Text())
			rec.MachineVersion = v.SelectAttrValue("machineVersion", "")
		}
		p.log.registerMod(rec)
		if stored != "" {
			p.keys[stored] = ModOwner(key)
		}
	}
	return nil
}

func (p *parser) owner(el *etree.Element) (OwnerID, error) {
	switch el.Tag {
	case "original":
		return Original, nil
	case "mod":
		stored := el.SelectAttrValue("key", "")
		if stored == OriginalValuesKey {
			return Original, nil
		}
		if o, ok := p.keys[stored]; ok {
			return o, nil
		}
		return OwnerID{}, errors.Newf(errors.ErrLedgerFormat, "installing mod %q is not in the mod list", stored)
	default:
		return OwnerID{}, errors.Newf(errors.ErrLedgerFormat, "unexpected element %q in installingMods", el.Tag)
	}
}

func (p *parser) installingMods(el *etree.Element, visit func(owner OwnerID, value *etree.Element)) error {
	list := el.SelectElement("installingMods")
	if list == nil {
		return nil
	}
	for _, child := range list.ChildElements() {
		o, err := p.owner(child)
		if err != nil {
			return err
		}
		visit(o, child)
	}
	return nil
}

func (p *parser) dataFiles(el *etree.Element) error {
	if el == nil {
		return nil
	}
	for _, f := range el.SelectElements("file") {
		path := f.SelectAttrValue("path", "")
		if path == "" {
			return errors.New(errors.ErrLedgerFormat, "file entry without a path")
		}
		path = paths.NormalizeResourcePath(path)
		var s Stack[string]
		err := p.installingMods(f, func(o OwnerID, v *etree.Element) {
			s = appendEntry(s, o, v.SelectAttrValue("hash", ""))
		})
		if err != nil {
			return err
		}
		if len(s) > 0 {
			p.log.files[path] = s
		}
	}
	return nil
}

func (p *parser) iniEdits(el *etree.Element) error {
	if el == nil {
		return nil
	}
	for _, ini := range el.SelectElements("ini") {
		k := mergemodule.NewSettingKey(
			ini.SelectAttrValue("file", ""),
			ini.SelectAttrValue("section", ""),
			ini.SelectAttrValue("key", ""),
		)
		if k.File == "" || k.Key == "" {
			return errors.New(errors.ErrLedgerFormat, "ini entry without file or key")
		}
		var s Stack[string]
		err := p.installingMods(ini, func(o OwnerID, v *etree.Element) {
			s = appendEntry(s, o, v.Text())
		})
		if err != nil {
			return err
		}
		if len(s) > 0 {
			p.log.settings[k] = s
		}
	}
	return nil
}

func (p *parser) shaderEdits(el *etree.Element) error {
	if el == nil {
		return nil
	}
	for _, edit := range el.ChildElements() {
		if edit.Tag == "edit" && !strings.HasPrefix(strings.ToLower(edit.SelectAttrValue("key", "")), "sdp:") {
			// other game-specific edits are not managed here
			continue
		}
		k, err := shaderKeyOf(edit)
		if err != nil {
			return err
		}
		var (
			s      Stack[[]byte]
			decErr error
		)
		err = p.installingMods(edit, func(o OwnerID, v *etree.Element) {
			data, err := hex.DecodeString(strings.TrimSpace(v.Text()))
			if err != nil {
				decErr = errors.Wrapf(err, errors.ErrLedgerFormat, "shader %s holds invalid hex", k)
				return
			}
			s = appendEntry(s, o, data)
		})
		if err != nil {
			return err
		}
		if decErr != nil {
			return decErr
		}
		if len(s) > 0 {
			p.log.shaders[k] = s
		}
	}
	return nil
}

func shaderKeyOf(el *etree.Element) (mergemodule.ShaderKey, error) {
	if el.Tag == "sdp" {
		pkg, err := strconv.Atoi(el.SelectAttrValue("package", ""))
		if err != nil {
			return mergemodule.ShaderKey{}, errors.Wrap(err, errors.ErrLedgerFormat, "sdp entry with a bad package")
		}
		return mergemodule.NewShaderKey(pkg, el.SelectAttrValue("shader", "")), nil
	}
	k, err := mergemodule.ParseShaderKey(el.SelectAttrValue("key", ""))
	if err != nil {
		return mergemodule.ShaderKey{}, errors.Wrap(err, errors.ErrLedgerFormat, "edit entry with a bad key")
	}
	return k, nil
}

// appendEntry keeps Original at the bottom and one entry per owner, as
// older logs did not always guarantee either.
func appendEntry[V any](s Stack[V], o OwnerID, v V) Stack[V] {
	if o.IsOriginal() {
		return s.pushOriginal(v)
	}
	return s.push(o, v)
}
