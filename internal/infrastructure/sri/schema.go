package sri

import (
	"fmt"
	"regexp"

	"github.com/beevik/etree"

	"github.com/jhoicas/sri-comprobantes/internal/domain"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	sricat "github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Orden de infoTributaria según los XSD del SRI; required marca los obligatorios.
var infoTributariaOrder = []struct {
	tag      string
	required bool
}{
	{"ambiente", true},
	{"tipoEmision", true},
	{"razonSocial", true},
	{"nombreComercial", false},
	{"ruc", true},
	{"claveAcceso", true},
	{"codDoc", true},
	{"estab", true},
	{"ptoEmi", true},
	{"secuencial", true},
	{"dirMatriz", true},
	{"agenteRetencion", false},
	{"contribuyenteRimpe", false},
}

var (
	reThreeDigits = regexp.MustCompile(`^\d{3}$`)
	reNineDigits  = regexp.MustCompile(`^\d{9}$`)
	reDate        = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	rePeriod      = regexp.MustCompile(`^\d{2}/\d{4}$`)
)

// Fechas obligatorias del bloque de información. La guía no tiene fechaEmision.
var dateFields = map[sricat.DocumentType][]string{
	sricat.DocFactura:      {"fechaEmision"},
	sricat.DocNotaCredito:  {"fechaEmision"},
	sricat.DocNotaDebito:   {"fechaEmision"},
	sricat.DocGuiaRemision: {"fechaIniTransporte", "fechaFinTransporte"},
	sricat.DocRetencion:    {"fechaEmision"},
}

// Lista que no puede venir vacía en el cuerpo de cada comprobante.
var bodies = map[sricat.DocumentType]struct{ list, item string }{
	sricat.DocFactura:      {"detalles", "detalle"},
	sricat.DocNotaCredito:  {"detalles", "detalle"},
	sricat.DocNotaDebito:   {"motivos", "motivo"},
	sricat.DocGuiaRemision: {"destinatarios", "destinatario"},
	sricat.DocRetencion:    {"docsSustento", "docSustento"},
}

// SchemaValidator verificación estructural previa a la firma: raíz, infoTributaria completo
// y en orden, clave de acceso coherente y bloque de información presente.
type SchemaValidator struct{}

// NewSchemaValidator crea el validador.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate devuelve ErrSchemaViolation con un detalle por problema encontrado.
// docType vacío toma el tipo del elemento raíz.
func (v *SchemaValidator) Validate(xmlBytes []byte, docType sricat.DocumentType) error {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = signer.CharsetReader
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return domain.WrapError(domain.CodeInput, domain.ErrMalformedInput, err, "")
	}
	root := doc.Root()
	if root == nil {
		return domain.NewError(domain.CodeInput, domain.ErrMalformedInput, "", "documento sin elemento raíz")
	}

	var spec sricat.DocumentSpec
	var ok bool
	if docType == "" {
		spec, ok = sricat.DocumentByRootTag(root.Tag)
	} else {
		spec, ok = sricat.LookupDocument(docType)
	}
	if !ok {
		return violation(fmt.Sprintf("tipo de comprobante no reconocido (raíz <%s>, codDoc %q)", root.Tag, docType))
	}

	var details []string
	add := func(format string, args ...interface{}) { details = append(details, fmt.Sprintf(format, args...)) }

	if root.Tag != spec.RootTag {
		add("raíz <%s>, se esperaba <%s>", root.Tag, spec.RootTag)
	}
	if id := root.SelectAttrValue("id", ""); id != "comprobante" {
		add("atributo id de la raíz %q, se esperaba \"comprobante\"", id)
	}
	if root.SelectAttrValue("version", "") == "" {
		add("falta el atributo version de la raíz")
	}

	children := root.ChildElements()
	if len(children) == 0 || children[0].Tag != "infoTributaria" {
		add("infoTributaria debe ser el primer elemento de <%s>", spec.RootTag)
		return violation(details...)
	}
	values := checkInfoTributaria(children[0], add)

	if values["codDoc"] != "" && values["codDoc"] != string(spec.Type) {
		add("codDoc %s no corresponde a <%s> (%s)", values["codDoc"], spec.RootTag, spec.Type)
	}
	if key := values["claveAcceso"]; key != "" {
		if err := sricat.ValidateAccessKey(key); err != nil {
			add("claveAcceso: %v", err)
		} else {
			if key[8:10] != string(spec.Type) {
				add("claveAcceso de tipo %s en un comprobante %s", key[8:10], spec.Type)
			}
			if amb := values["ambiente"]; amb != "" && key[23:24] != amb {
				add("claveAcceso de ambiente %s con ambiente %s", key[23:24], amb)
			}
		}
	}

	info := root.SelectElement(spec.InfoBlock)
	if info == nil {
		add("falta %s", spec.InfoBlock)
	} else {
		for _, tag := range dateFields[spec.Type] {
			if el := info.SelectElement(tag); el == nil || !reDate.MatchString(el.Text()) {
				add("%s/%s debe tener formato dd/mm/aaaa", spec.InfoBlock, tag)
			}
		}
		if spec.Type == sricat.DocRetencion {
			if el := info.SelectElement("periodoFiscal"); el == nil || !rePeriod.MatchString(el.Text()) {
				add("%s/periodoFiscal debe tener formato mm/aaaa", spec.InfoBlock)
			}
		}
	}
	if b, ok := bodies[spec.Type]; ok {
		if list := root.SelectElement(b.list); list == nil || len(list.SelectElements(b.item)) == 0 {
			add("el comprobante debe tener al menos un %s", b.item)
		}
	}

	if len(details) > 0 {
		return violation(details...)
	}
	return nil
}

// checkInfoTributaria valida presencia, orden y formato; devuelve los valores leídos.
func checkInfoTributaria(it *etree.Element, add func(string, ...interface{})) map[string]string {
	values := map[string]string{}
	pos := 0
	for _, child := range it.ChildElements() {
		idx := -1
		for i := pos; i < len(infoTributariaOrder); i++ {
			if infoTributariaOrder[i].tag == child.Tag {
				idx = i
				break
			}
		}
		if idx < 0 {
			add("infoTributaria/%s fuera de orden o no permitido", child.Tag)
			continue
		}
		pos = idx + 1
		values[child.Tag] = child.Text()
	}
	for _, f := range infoTributariaOrder {
		if _, ok := values[f.tag]; f.required && !ok {
			add("falta infoTributaria/%s", f.tag)
		}
	}

	if v, ok := values["ambiente"]; ok && v != string(sricat.EnvPruebas) && v != string(sricat.EnvProduccion) {
		add("ambiente %q inválido", v)
	}
	if v, ok := values["tipoEmision"]; ok && v != sricat.EmissionNormal {
		add("tipoEmision %q inválido", v)
	}
	if v, ok := values["ruc"]; ok {
		if err := sricat.ValidateRUC(v); err != nil {
			add("ruc: %v", err)
		}
	}
	for _, tag := range []string{"estab", "ptoEmi"} {
		if v, ok := values[tag]; ok && !reThreeDigits.MatchString(v) {
			add("%s debe tener 3 dígitos", tag)
		}
	}
	if v, ok := values["secuencial"]; ok && !reNineDigits.MatchString(v) {
		add("secuencial debe tener 9 dígitos")
	}
	return values
}

func violation(details ...string) error {
	return domain.NewError(domain.CodeSchema, domain.ErrSchemaViolation, "", details...)
}
