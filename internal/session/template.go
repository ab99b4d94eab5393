package session

import (
	"fmt"
	"strings"

	"github.com/apiforge/apiforge/internal/placement"
)

// placeholderFor produces a minimal compilable unit for a role. This is the
// last rung of the fallback chain: it guarantees forward progress for every
// required role even with zero oracle availability, leaving an obvious
// starting point for a human.
func placeholderFor(role Role, keyword string, d placement.Descriptor) string {
	base := baseName(keyword)
	op := operationName(d)
	pkg := placeholderPackage(keyword)

	switch role {
	case RoleController:
		return fmt.Sprintf(`package %s;

import org.springframework.web.bind.annotation.RequestMapping;
import org.springframework.web.bind.annotation.RestController;

@RestController
@RequestMapping("%s")
public class %sController {

    @RequestMapping("/%s")
    public Object %s() {
        throw new UnsupportedOperationException("pending implementation");
    }
}
`, pkg, basePath(d), base, lowerFirst(op), lowerFirst(op))
	case RoleApplicationService:
		return fmt.Sprintf(`package %s;

import org.springframework.stereotype.Service;

@Service
public class %sAppService {

    public Object %s() {
        throw new UnsupportedOperationException("pending implementation");
    }
}
`, pkg, base, lowerFirst(op))
	case RoleDomainService:
		return fmt.Sprintf(`package %s;

import org.springframework.stereotype.Service;

@Service
public class %sService {
}
`, pkg, base)
	case RoleMapper:
		return fmt.Sprintf(`package %s;

import org.apache.ibatis.annotations.Mapper;

@Mapper
public interface %sMapper {
}
`, pkg, base)
	case RoleMapperXML:
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE mapper PUBLIC "-//mybatis.org//DTD Mapper 3.0//EN" "http://mybatis.org/dtd/mybatis-3-mapper.dtd">
<mapper namespace="%s.%sMapper">
</mapper>
`, pkg, base)
	case RoleRequestDTO:
		return dtoPlaceholder(pkg, op+"Request", d.RequestFields)
	case RoleResponseDTO:
		return dtoPlaceholder(pkg, op+"Response", d.ResponseFields)
	case RoleEntity:
		return fmt.Sprintf(`package %s;

public class %sDO {
}
`, pkg, base)
	case RoleFeignClient:
		return fmt.Sprintf(`package %s;

import org.springframework.cloud.openfeign.FeignClient;

@FeignClient(name = "%s")
public interface %sClient {
}
`, pkg, keyword, base)
	default:
		return fmt.Sprintf("package %s;\n\npublic class %s {\n}\n", pkg, base)
	}
}

func dtoPlaceholder(pkg, name string, fields []placement.Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\npublic class %s {\n", pkg, name)
	for _, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = "String"
		}
		fmt.Fprintf(&b, "\n    private %s %s;\n", typ, f.Name)
	}
	b.WriteString("}\n")
	return b.String()
}

func placeholderPackage(keyword string) string {
	if keyword == "" {
		return "com.generated"
	}
	return "com.generated." + strings.ToLower(keyword)
}

func basePath(d placement.Descriptor) string {
	segments := d.PathSegments()
	if len(segments) <= 1 {
		return d.Path
	}
	return "/" + strings.Join(segments[:len(segments)-1], "/")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
