package service

import "strings"

// staticAccessControl 基于配置的静态权限表
// 地址比较不区分大小写
type staticAccessControl struct {
	owner     string
	operators map[string]struct{}
}

// NewStaticAccessControl 创建静态权限表
// 平台所有者自动持有运营角色
func NewStaticAccessControl(owner string, operators []string) AccessControl {
	ops := make(map[string]struct{}, len(operators)+1)
	for _, op := range operators {
		if op == "" {
			continue
		}
		ops[strings.ToLower(op)] = struct{}{}
	}
	if owner != "" {
		ops[strings.ToLower(owner)] = struct{}{}
	}
	return &staticAccessControl{
		owner:     strings.ToLower(owner),
		operators: ops,
	}
}

// IsOperator 判断调用方是否持有运营角色
func (a *staticAccessControl) IsOperator(caller string) bool {
	if caller == "" {
		return false
	}
	_, ok := a.operators[strings.ToLower(caller)]
	return ok
}

// IsOwner 判断调用方是否为平台所有者
func (a *staticAccessControl) IsOwner(caller string) bool {
	if caller == "" || a.owner == "" {
		return false
	}
	return strings.ToLower(caller) == a.owner
}
