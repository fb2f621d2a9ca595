package domain

import (
	"fmt"
	"sort"
	"strings"
)

// The trace documents use opaque section and field identifiers from the
// upstream production system. The two tables below rename them to stable,
// human-legible names so the oracle can reason about them. Both tables are
// built once and never mutated.

var sectionNames = map[string]string{
	"tztotrazwebinfo":         "INFORMACION_GENERAL",
	"tztotrazwebalma":         "ALMACEN",
	"tztotrazwebacab":         "ACABADO",
	"tztotrazwebacabmedi":     "MEDICIONES_ACABADO",
	"tztotrazwebcost":         "COSTURA",
	"tztotrazwebcostoper":     "OPERACIONES_COSTURA",
	"tztotrazwebcort":         "CORTE",
	"tztotrazwebcortoper":     "OPERACIONES_CORTE",
	"tztotrazwebtint":         "TINTORERIA",
	"tztotrazwebteje":         "TEJEDURIA",
	"tztotrazwebhilo":         "HILOS",
	"tztotrazwebhilolote":     "LOTES_HILO",
	"tztotrazwebhiloloteprin": "PROVEEDORES_HILO",
}

var fieldNames = map[string]string{
	"TCODICLIE":         "codigo_cliente",
	"TNOMBCLIE":         "nombre_cliente",
	"TCODIESTICLIE":     "estilo_cliente",
	"TCODITALL":         "talla",
	"TDESCPREN":         "descripcion_prenda",
	"TTIPOPREN":         "tipo_prenda",
	"TDESCTIPOPREN":     "descripcion_tipo_prenda",
	"TDESCEDAD":         "edad",
	"TDESCGENE":         "genero",
	"TNUMECAJA":         "numero_caja",
	"TCODIDEST":         "codigo_destino",
	"TDESCDEST":         "destino",
	"TFECHRECEALMA":     "fecha_recepcion_almacen",
	"TNOMBPERSRECEALMA": "persona_recepcion",
	"TFECHPESA":         "fecha_pesado",
	"TNOMBPERSPESA":     "persona_pesado",
	"TFECHEMPA":         "fecha_empaque",
	"TNOMBPERSEMPA":     "persona_empaque",
	"TFECHAUDI":         "fecha_auditoria",
	"TNOMBPERSAUDI":     "persona_auditoria",
	"TORDECOST":         "orden_costura",
	"TNUMELINECOST":     "linea_costura",
	"TDESCPLANCOST":     "planta_costura",
	"TNOMBPERSSUPE":     "supervisor_costura",
	"TDESCOPERESPE":     "operacion_costura",
	"TNOMBPERS":         "operario",
	"TFECHLECT":         "fecha_lectura",
	"TNUMEORDECORT":     "orden_corte",
	"TNUMETEND":         "numero_tendido",
	"TFECHDESPCORT":     "fecha_despacho_corte",
	"TDESCOPER":         "operacion_corte",
	"TNUMEOB":           "numero_OB",
	"TNUMEUD":           "numero_UD",
	"TTIPOARTI":         "tipo_articulo",
	"TDESCTIPOARTI":     "descripcion_tipo_articulo",
	"TDESCTELA":         "descripcion_tela",
	"TDESCCOLN":         "descripcion_color",
	"TMAQUTENI":         "codigo_maquina_tenido",
	"TNOMBMAQUTENI":     "maquina_tenido",
	"TFABRMAQUTENI":     "fabricante_maquina_tenido",
	"TMAQUCORT":         "codigo_maquina_cortadora",
	"TNOMBMAQUCORT":     "maquina_cortadora",
	"TMAQUSECA":         "codigo_maquina_secado",
	"TNOMBMAQUSECA":     "maquina_secado",
	"TMAQUACAB":         "codigo_rama",
	"TNOMBMAQUACAB":     "RAMA_ACABADO",
	"TFABRMAQUACAB":     "fabricante_rama",
	"TPARTTINT":         "partida_tintoreria",
	"TFECHTENIINIC":     "fecha_inicio_tenido",
	"TFECHTENIFINA":     "fecha_fin_tenido",
	"TFECHSECAINIC":     "fecha_inicio_secado",
	"TFECHSECAFINA":     "fecha_fin_secado",
	"TFECHACABINIC":     "fecha_inicio_acabado",
	"TFECHACABFINA":     "fecha_fin_acabado",
	"TORDETEJE":         "orden_tejeduria",
	"TCODITELA":         "codigo_tela",
	"TTIPOTEJI":         "tipo_tejido",
	"TDESCTIPOTEJI":     "descripcion_tipo_tejido",
	"TCODIMAQU":         "codigo_maquina_tejeduria",
	"TNOMBMAQU":         "maquina_tejeduria",
	"TFABRMAQU":         "fabricante_maquina_tejeduria",
	"TFECHTEJE":         "fecha_tejido",
	"TKILOPIEZ":         "kilos_pieza",
	"TCODICOLOHILO":     "codigo_color_hilo",
	"TDESCCOLOHILO":     "color_hilo",
	"TTITUHILO":         "titulo_hilo",
	"TCOMPHILO":         "composicion_hilo",
	"TNOMBPROV":         "proveedor_hilo",
	"TNUMELOTE":         "numero_lote",
}

// SectionName returns the legible name for an opaque section key, falling
// back to the key itself.
func SectionName(key string) string {
	if name, ok := sectionNames[key]; ok {
		return name
	}
	return key
}

// FieldName returns the legible name for an opaque field key, falling back
// to the key itself.
func FieldName(key string) string {
	if name, ok := fieldNames[key]; ok {
		return name
	}
	return key
}

// NormalizedDocument is a trace document after renaming: legible section →
// legible field → distinct stringified values.
type NormalizedDocument map[string]map[string][]string

// Normalize renames sections and fields and collapses record arrays to the
// union of distinct values per field. At most maxArrayItems records per
// section array are inspected and at most maxValues distinct values are
// kept per field.
func Normalize(doc TraceDocument, maxArrayItems, maxValues int) NormalizedDocument {
	out := make(NormalizedDocument, len(doc))
	for sectionKey, sectionData := range doc {
		if strings.HasPrefix(sectionKey, "_") {
			continue
		}
		fields := make(map[string][]string)
		switch data := sectionData.(type) {
		case []any:
			items := data
			if maxArrayItems > 0 && len(items) > maxArrayItems {
				items = items[:maxArrayItems]
			}
			for _, item := range items {
				record, ok := item.(map[string]any)
				if !ok {
					continue
				}
				for fieldKey, value := range record {
					addFieldValue(fields, FieldName(fieldKey), value, maxValues)
				}
			}
		case map[string]any:
			for fieldKey, value := range data {
				addFieldValue(fields, FieldName(fieldKey), value, maxValues)
			}
		}
		if len(fields) > 0 {
			out[SectionName(sectionKey)] = fields
		}
	}
	return out
}

func addFieldValue(fields map[string][]string, name string, value any, maxValues int) {
	str := stringifyValue(value)
	if str == "" {
		return
	}
	existing := fields[name]
	for _, v := range existing {
		if v == str {
			return
		}
	}
	if maxValues > 0 && len(existing) >= maxValues {
		return
	}
	fields[name] = append(existing, str)
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// Merge unions src into dst per (section, field), keeping at most maxValues
// distinct values per field.
func (dst NormalizedDocument) Merge(src NormalizedDocument, maxValues int) {
	for section, fields := range src {
		target, ok := dst[section]
		if !ok {
			target = make(map[string][]string, len(fields))
			dst[section] = target
		}
		for field, values := range fields {
			for _, v := range values {
				addFieldValue(target, field, v, maxValues)
			}
		}
	}
}

// Project reduces a document to the requested "SECTION.field" keys (a bare
// field name matches any section), deduplicating values and keeping at most
// maxValues per field. A nil key slice yields the full normalized document
// flattened to "SECTION.field" keys.
func Project(doc TraceDocument, keys []string, maxArrayItems, maxValues int) map[string][]string {
	normalized := Normalize(doc, maxArrayItems, maxValues)
	out := make(map[string][]string)

	if len(keys) == 0 {
		for section, fields := range normalized {
			for field, values := range fields {
				out[section+"."+field] = values
			}
		}
		return out
	}

	for _, key := range keys {
		section, field, qualified := strings.Cut(key, ".")
		if qualified {
			if fields, ok := normalized[section]; ok {
				if values, ok := fields[field]; ok {
					out[field] = values
				}
			}
			continue
		}
		want := strings.ToLower(key)
		for _, fields := range normalized {
			for name, values := range fields {
				if strings.ToLower(name) == want || strings.Contains(strings.ToLower(name), want) {
					out[name] = values
				}
			}
		}
	}
	return out
}

// AvailableSections lists the legible names of a document's top-level
// sections, sorted for stable output.
func AvailableSections(doc TraceDocument) []string {
	out := make([]string, 0, len(doc))
	for key := range doc {
		if strings.HasPrefix(key, "_") {
			continue
		}
		out = append(out, SectionName(key))
	}
	sort.Strings(out)
	return out
}
