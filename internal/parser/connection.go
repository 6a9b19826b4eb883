package parser

import (
	"github.com/tidwall/gjson"
)

func (p Parser) parseConnection(doc gjson.Result, info *ParsedAssetInfo) {
	if !p.caps.ConnectionInfo {
		return
	}
	p.extract("connectionInfo", func() {
		src := unwrap(doc, "DataSource")
		info.Connection = connectionInfo(src)
	})
}

func connectionInfo(src gjson.Result) *ConnectionInfo {
	paramsType, params := onlyKey(src.Get("DataSourceParameters"))
	ci := &ConnectionInfo{
		Type:             src.Get("Type").String(),
		ParametersType:   paramsType,
		Host:             params.Get("Host").String(),
		Port:             params.Get("Port").Int(),
		Database:         params.Get("Database").String(),
		VPCConnectionArn: src.Get("VpcConnectionProperties.VpcConnectionArn").String(),
		SSLDisabled:      src.Get("SslProperties.DisableSsl").Bool(),
	}
	// Keep the scalar parameters so callers can show engine-specific
	// settings (warehouse, catalog, workgroup) without knowing each shape.
	params.ForEach(func(k, v gjson.Result) bool {
		switch v.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
			if ci.Parameters == nil {
				ci.Parameters = make(map[string]string)
			}
			ci.Parameters[k.String()] = v.String()
		}
		return true
	})
	return ci
}
